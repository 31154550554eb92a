package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestLister_List(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".gitignore":        "build/\n*.log\n",
		".git/HEAD":         "ref: refs/heads/main\n",
		"main.go":           "package main\n",
		"pkg/a.go":          "package pkg\n",
		"pkg/b_test.go":     "package pkg\n",
		"build/out.bin":     "x",
		"debug.log":         "x",
		"vendor/dep/dep.go": "package dep\n",
		"web/app.ts":        "export {}\n",
	})

	l := &Lister{Root: root, Exclude: func(p string) bool { return strings.HasPrefix(p, "vendor/") }}
	files, err := l.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{".gitignore", "main.go", "pkg/a.go", "pkg/b_test.go", "web/app.ts"}, files)

	l.NoGitignore = true
	l.Exclude = nil
	files, err = l.List(context.Background())
	require.NoError(t, err)
	assert.Contains(t, files, "build/out.bin")
	assert.Contains(t, files, "debug.log")
	assert.NotContains(t, files, ".git/HEAD")
}

func TestLister_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.go": "", "b.go": ""})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ListFiles(ctx, root, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHistogram(t *testing.T) {
	got := Histogram([]string{"a.go", "b.go", "c.rs", "d.ts", "e.TS", "Makefile", ".env", "x/y.rs", "z.go"})
	assert.Equal(t, []ExtCount{{"go", 3}, {"rs", 2}, {"ts", 2}}, got)
}

func TestExt(t *testing.T) {
	assert.Equal(t, "go", Ext("pkg/a.go"))
	assert.Equal(t, "tsx", Ext("web/App.TSX"))
	assert.Equal(t, "", Ext("Makefile"))
	assert.Equal(t, "", Ext(".bashrc"))
	assert.Equal(t, "", Ext("dir.d/file"))
	assert.Equal(t, "gz", Ext("a.tar.gz"))
}
