//go:build cgo

package symbols

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeSitterExtractor_Go(t *testing.T) {
	src := "package a\n\ntype Server struct{}\n\nfunc (s *Server) Start() {}\n\nfunc Run() {\n}\n"
	ex := newTreeSitterExtractor()
	require.NotNil(t, ex)
	require.True(t, ex.Supports("go"))
	assert.False(t, ex.Supports("rb"))

	locs, err := ex.Extract(context.Background(), "a.go", "go", []byte(src))
	require.NoError(t, err)
	require.Len(t, locs, 3)

	assert.Equal(t, "Server", locs[0].Name)
	assert.Equal(t, KindType, locs[0].Kind)
	assert.Equal(t, "Start", locs[1].Name)
	assert.Equal(t, KindMethod, locs[1].Kind)
	assert.Equal(t, Location{Name: "Run", Path: "a.go", Line: 7, EndLine: 8, Column: 1, Kind: KindFunction}, locs[2])
}

func TestTreeSitterExtractor_PythonMethods(t *testing.T) {
	src := "class Cart:\n    def total(self):\n        return 0\n\ndef checkout():\n    pass\n"
	locs, err := newTreeSitterExtractor().Extract(context.Background(), "c.py", "py", []byte(src))
	require.NoError(t, err)
	require.Len(t, locs, 3)
	assert.Equal(t, []string{"Cart", "total", "checkout"}, names(locs))
	assert.Equal(t, KindClass, locs[0].Kind)
	assert.Equal(t, KindMethod, locs[1].Kind)
	assert.Equal(t, KindFunction, locs[2].Kind)
}

func TestStaticBackend_TreeSitterOption(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.go": "package a\n\nfunc Run() {\n\treturn\n}\n"})

	b := NewStaticBackend(StaticOptions{TreeSitter: true})
	require.NoError(t, b.Build(context.Background(), root, []string{"a.go"}))
	locs, err := b.Lookup(context.Background(), "Run", "")
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, 5, locs[0].EndLine, "tree-sitter knows where declarations end")
}
