package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"reviewctx/internal/symbols"
)

const fileCacheSize = 256

// fileCache holds repository files split into lines. Missing, unreadable
// and binary files are cached as nil.
type fileCache struct {
	root  string
	lines *lru.Cache[string, []string]
}

func newFileCache(root string) *fileCache {
	c, err := lru.New[string, []string](fileCacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &fileCache{root: root, lines: c}
}

// Lines returns the lines of rel, a repository-relative slash path.
func (c *fileCache) Lines(ctx context.Context, rel string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if lines, ok := c.lines.Get(rel); ok {
		return lines, nil
	}
	lines := readLines(filepath.Join(c.root, filepath.FromSlash(rel)))
	c.lines.Add(rel, lines)
	return lines, nil
}

func readLines(abs string) []string {
	data, err := os.ReadFile(abs)
	if err != nil || symbols.IsBinary(data) {
		return nil
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// excerpt joins lines start..end (1-based, inclusive) after clamping them to
// the file. ok is false when nothing remains.
func excerpt(lines []string, start, end int) (text string, from, to int, ok bool) {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return "", 0, 0, false
	}
	return strings.Join(lines[start-1:end], "\n") + "\n", start, end, true
}
