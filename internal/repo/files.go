// Package repo lists the files of a repository checkout.
package repo

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Lister enumerates repository-relative, slash-separated file paths in sorted order.
type Lister struct {
	Root string
	// Exclude drops files for which it returns true. Directories are never
	// passed to it.
	Exclude func(path string) bool
	// NoGitignore disables .gitignore and .git/info/exclude handling.
	NoGitignore bool
	Logger      *slog.Logger
}

// List walks the repository. .git directories are always skipped.
func (l *Lister) List(ctx context.Context) ([]string, error) {
	root, err := filepath.Abs(l.Root)
	if err != nil {
		return nil, err
	}

	var ignore gitignore.Matcher
	if !l.NoGitignore {
		patterns, err := gitignore.ReadPatterns(osfs.New(root), nil)
		if err != nil && l.Logger != nil {
			l.Logger.Debug("gitignore patterns unavailable", "root", root, "error", err)
		}
		if len(patterns) > 0 {
			ignore = gitignore.NewMatcher(patterns)
		}
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable entries are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		parts := strings.Split(rel, "/")

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if ignore != nil && ignore.Match(parts, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ignore != nil && ignore.Match(parts, false) {
			return nil
		}
		if l.Exclude != nil && l.Exclude(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// ListFiles is a convenience wrapper around Lister.
func ListFiles(ctx context.Context, root string, exclude func(string) bool) ([]string, error) {
	l := &Lister{Root: root, Exclude: exclude}
	return l.List(ctx)
}
