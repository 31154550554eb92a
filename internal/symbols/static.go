package symbols

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"reviewctx/internal/repo"
	"reviewctx/internal/slogutil"
)

// sniffLen is how much of a file is checked for NUL bytes.
const sniffLen = 2048

// extractor is a structural parser used instead of the line patterns for the
// extensions it supports.
type extractor interface {
	Supports(ext string) bool
	Extract(ctx context.Context, path, ext string, src []byte) ([]Location, error)
}

// StaticOptions bounds a static scan.
type StaticOptions struct {
	MaxFiles     int
	MaxBytes     int
	MaxLocations int
	Concurrency  int
	// TreeSitter selects the tree-sitter extractor where the build supports it.
	TreeSitter bool
	// Exclude reports paths that must not be indexed.
	Exclude func(path string) bool
	Logger  *slog.Logger
}

// StaticBackend indexes declarations with per-language line patterns.
type StaticBackend struct {
	opts      StaticOptions
	extractor extractor

	mu    sync.RWMutex
	index *Index
}

// NewStaticBackend creates a static backend. Nothing is read until Build.
func NewStaticBackend(opts StaticOptions) *StaticBackend {
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	b := &StaticBackend{opts: opts}
	if opts.TreeSitter {
		b.extractor = newTreeSitterExtractor()
		if b.extractor == nil {
			opts.Logger.Warn("tree-sitter parser requested but not compiled in, using patterns")
		}
	}
	return b
}

func (b *StaticBackend) Name() string { return "static" }

func (b *StaticBackend) Available() bool { return true }

func (b *StaticBackend) Close() error { return nil }

// Build scans files and replaces the index.
func (b *StaticBackend) Build(ctx context.Context, root string, files []string) error {
	ix := NewIndex(b.opts.MaxLocations)
	if err := Scan(ctx, root, files, ix, b.opts, b.extractor); err != nil {
		return err
	}
	b.mu.Lock()
	b.index = ix
	b.mu.Unlock()
	b.opts.Logger.Debug("static index built",
		"files", ix.FilesIndexed(),
		"names", ix.Names(),
		"symbols", ix.Len(),
	)
	return nil
}

// Lookup answers from the built index; before Build it finds nothing.
func (b *StaticBackend) Lookup(ctx context.Context, name, hint string) ([]Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	ix := b.index
	b.mu.RUnlock()
	if ix == nil {
		return nil, nil
	}
	return PreferNear(ix.Lookup(name), hint), nil
}

// Index returns the built index, or nil.
func (b *StaticBackend) Index() *Index {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index
}

type scanResult struct {
	path string
	locs []Location
}

// Scan reads the eligible files under root and adds their declarations to ix
// in sorted path order. MaxFiles counts files that produced at least one
// declaration; scanning stops once that many have been merged.
func Scan(ctx context.Context, root string, files []string, ix *Index, opts StaticOptions, ex extractor) error {
	eligible := make([]string, 0, len(files))
	for _, f := range files {
		ext := repo.Ext(f)
		if !HasPatterns(ext) && (ex == nil || !ex.Supports(ext)) {
			continue
		}
		if opts.Exclude != nil && opts.Exclude(f) {
			continue
		}
		eligible = append(eligible, f)
	}
	sort.Strings(eligible)

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	batch := concurrency * 8
	if batch < 32 {
		batch = 32
	}

	indexed := 0
	for start := 0; start < len(eligible); start += batch {
		end := min(start+batch, len(eligible))
		results := make([]scanResult, end-start)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i, f := range eligible[start:end] {
			i, f := i, f
			g.Go(func() error {
				locs, err := scanFile(gctx, root, f, opts, ex)
				if err != nil {
					return err
				}
				results[i] = scanResult{path: f, locs: locs}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, r := range results {
			if len(r.locs) == 0 {
				continue
			}
			if opts.MaxFiles > 0 && indexed >= opts.MaxFiles {
				return nil
			}
			indexed++
			for _, loc := range r.locs {
				ix.Add(loc)
			}
		}
	}
	return nil
}

// scanFile returns no locations for unreadable, oversized or binary files.
// Only context cancellation is an error.
func scanFile(ctx context.Context, root, rel string, opts StaticOptions, ex extractor) ([]Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return nil, nil
	}
	if opts.MaxBytes > 0 && info.Size() > int64(opts.MaxBytes) {
		return nil, nil
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, nil
	}
	if IsBinary(data) {
		return nil, nil
	}

	ext := repo.Ext(rel)
	if ex != nil && ex.Supports(ext) {
		locs, err := ex.Extract(ctx, rel, ext, data)
		if err == nil {
			return locs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if opts.Logger != nil {
			opts.Logger.Debug("tree-sitter extraction failed, using patterns", "path", rel, "error", err)
		}
	}
	return ScanSource(rel, ext, string(data)), nil
}

// IsBinary reports whether data has a NUL byte in its first 2048 bytes.
func IsBinary(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}
