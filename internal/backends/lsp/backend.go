// Package lsp indexes symbols through a language server over stdio.
package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	rerrors "reviewctx/internal/errors"
	"reviewctx/internal/repo"
	"reviewctx/internal/slogutil"
	"reviewctx/internal/symbols"
)

// Options configures a Backend.
type Options struct {
	Command string
	Args    []string
	// Languages maps lowercase extensions to LSP language identifiers. Files
	// with other extensions are indexed with the static patterns.
	Languages map[string]string

	Timeout      time.Duration
	MaxFailures  int
	MaxFiles     int
	MaxBytes     int
	MaxLocations int
	Concurrency  int
	Exclude      func(path string) bool
	Logger       *slog.Logger
}

// Backend implements symbols.Backend with one language server per run. It
// is never restarted: after MaxFailures consecutive failed requests, or once
// the server goes away, it reports itself unavailable.
type Backend struct {
	opts Options
	log  *slog.Logger

	proc *Process
	conn *Conn
	root string

	mu          sync.Mutex
	index       *symbols.Index
	cache       map[string][]symbols.Location
	failures    int
	unavailable bool
	closed      bool

	flight singleflight.Group
}

// New creates a backend that spawns opts.Command on Build.
func New(opts Options) *Backend {
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 3
	}
	return &Backend{
		opts:  opts,
		log:   opts.Logger.With("backend", "lsp"),
		cache: make(map[string][]symbols.Location),
	}
}

// NewWithConn creates a backend talking over an established connection.
func NewWithConn(conn *Conn, opts Options) *Backend {
	b := New(opts)
	b.conn = conn
	return b
}

func (b *Backend) Name() string { return "lsp" }

// Available reports whether requests can still be sent.
func (b *Backend) Available() bool {
	b.mu.Lock()
	down := b.unavailable
	b.mu.Unlock()
	if down {
		return false
	}
	if b.conn == nil {
		return true
	}
	select {
	case <-b.conn.Done():
		return false
	default:
		return true
	}
}

func (b *Backend) markUnavailable(reason string) {
	b.mu.Lock()
	already := b.unavailable
	b.unavailable = true
	b.mu.Unlock()
	if !already {
		b.log.Warn("language server unavailable", "reason", reason)
	}
}

// call sends one request bounded by the per-request timeout and keeps the
// consecutive failure count. Cancellation of ctx itself is not a failure.
func (b *Backend) call(ctx context.Context, method string, params, result interface{}) error {
	if !b.Available() {
		return rerrors.New(rerrors.BackendUnavailable, "language server unavailable", nil)
	}
	cctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	err := b.conn.Call(cctx, method, params, result)
	if err == nil {
		b.mu.Lock()
		b.failures = 0
		b.mu.Unlock()
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	b.mu.Lock()
	b.failures++
	n := b.failures
	b.mu.Unlock()
	b.log.Debug("request failed", "method", method, "failures", n, "error", err)
	if n >= b.opts.MaxFailures {
		b.markUnavailable(fmt.Sprintf("%d consecutive failures", n))
	}
	return err
}

// Build starts the server if needed, initializes it and collects document
// symbols for every file with a mapped extension, in the given order.
func (b *Backend) Build(ctx context.Context, root string, files []string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return rerrors.New(rerrors.IndexBuildFailed, "resolve repository root", err)
	}
	b.root = abs

	if b.conn == nil {
		if b.opts.Command == "" {
			b.markUnavailable("no command")
			return rerrors.New(rerrors.BackendUnavailable, "no language server command", nil)
		}
		proc, err := StartProcess(b.opts.Command, b.opts.Args, abs, b.log)
		if err != nil {
			b.markUnavailable("spawn failed")
			return rerrors.New(rerrors.BackendUnavailable, "start language server", err)
		}
		b.proc = proc
		b.conn = proc.Conn()
	}

	if err := b.initialize(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.markUnavailable("initialize failed")
		return rerrors.New(rerrors.IndexBuildFailed, "initialize language server", err)
	}

	ix := symbols.NewIndex(b.opts.MaxLocations)
	var rest []string
	indexed := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.opts.Exclude != nil && b.opts.Exclude(f) {
			continue
		}
		lang := symbols.LanguageID(b.opts.Languages, f)
		if lang == "" {
			if symbols.HasPatterns(repo.Ext(f)) {
				rest = append(rest, f)
			}
			continue
		}
		if b.opts.MaxFiles > 0 && indexed >= b.opts.MaxFiles {
			continue
		}
		locs, err := b.documentSymbols(ctx, f, lang)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !b.Available() {
				return rerrors.New(rerrors.IndexBuildFailed, "documentSymbol "+f, err)
			}
			if symbols.HasPatterns(repo.Ext(f)) {
				rest = append(rest, f)
			}
			continue
		}
		if len(locs) == 0 {
			continue
		}
		indexed++
		for _, l := range locs {
			ix.Add(l)
		}
	}

	// Statically scanned files share the max_files budget.
	remaining := 0
	if b.opts.MaxFiles > 0 {
		remaining = b.opts.MaxFiles - indexed
	}
	if len(rest) > 0 && (b.opts.MaxFiles <= 0 || remaining > 0) {
		err := symbols.Scan(ctx, abs, rest, ix, symbols.StaticOptions{
			MaxFiles:    remaining,
			MaxBytes:    b.opts.MaxBytes,
			Concurrency: b.opts.Concurrency,
			Logger:      b.log,
		}, nil)
		if err != nil {
			return err
		}
	}

	b.mu.Lock()
	b.index = ix
	b.mu.Unlock()
	b.log.Debug("lsp index built", "files", ix.FilesIndexed(), "names", ix.Names(), "symbols", ix.Len())
	return nil
}

func (b *Backend) initialize(ctx context.Context) error {
	uri := FileURI(b.root)
	params := map[string]interface{}{
		"processId": os.Getpid(),
		"rootUri":   uri,
		"rootPath":  b.root,
		"workspaceFolders": []map[string]string{
			{"uri": uri, "name": filepath.Base(b.root)},
		},
		"capabilities": map[string]interface{}{
			"textDocument": map[string]interface{}{
				"documentSymbol": map[string]interface{}{
					"hierarchicalDocumentSymbolSupport": true,
				},
			},
			"workspace": map[string]interface{}{
				"symbol": map[string]interface{}{},
			},
		},
	}
	if err := b.call(ctx, "initialize", params, nil); err != nil {
		return err
	}
	return b.conn.Notify("initialized", map[string]interface{}{})
}

type textDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

type textDocumentIdentifier struct {
	URI string `json:"uri"`
}

// documentSymbols opens one file and asks for its symbols. Oversized,
// unreadable and binary files yield nothing.
func (b *Backend) documentSymbols(ctx context.Context, rel, lang string) ([]symbols.Location, error) {
	abs := filepath.Join(b.root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil || (b.opts.MaxBytes > 0 && info.Size() > int64(b.opts.MaxBytes)) {
		return nil, nil
	}
	data, err := os.ReadFile(abs)
	if err != nil || symbols.IsBinary(data) {
		return nil, nil
	}

	uri := FileURI(abs)
	if err := b.conn.Notify("textDocument/didOpen", map[string]interface{}{
		"textDocument": textDocumentItem{URI: uri, LanguageID: lang, Version: 1, Text: string(data)},
	}); err != nil {
		return nil, err
	}
	defer func() {
		_ = b.conn.Notify("textDocument/didClose", map[string]interface{}{
			"textDocument": textDocumentIdentifier{URI: uri},
		})
	}()

	var raw json.RawMessage
	if err := b.call(ctx, "textDocument/documentSymbol", map[string]interface{}{
		"textDocument": textDocumentIdentifier{URI: uri},
	}, &raw); err != nil {
		return nil, err
	}
	return parseDocumentSymbols(raw, rel), nil
}

// Lookup consults the built index first, then workspace/symbol. Workspace
// answers are cached per name, misses included.
func (b *Backend) Lookup(ctx context.Context, name, hint string) ([]symbols.Location, error) {
	b.mu.Lock()
	ix := b.index
	cached, hit := b.cache[name]
	b.mu.Unlock()

	if ix != nil && ix.Has(name) {
		return symbols.PreferNear(ix.Lookup(name), hint), nil
	}
	if hit {
		return symbols.PreferNear(cached, hint), nil
	}

	// Concurrent misses for one name share a single request.
	v, err, _ := b.flight.Do(name, func() (interface{}, error) {
		var raw json.RawMessage
		if err := b.call(ctx, "workspace/symbol", map[string]string{"query": name}, &raw); err != nil {
			return nil, err
		}
		locs := b.workspaceLocations(raw, name)
		b.mu.Lock()
		b.cache[name] = locs
		b.mu.Unlock()
		return locs, nil
	})
	if err != nil {
		return nil, err
	}
	return symbols.PreferNear(v.([]symbols.Location), hint), nil
}

func (b *Backend) workspaceLocations(raw json.RawMessage, name string) []symbols.Location {
	var syms []documentSymbol
	if len(raw) == 0 || json.Unmarshal(raw, &syms) != nil {
		return nil
	}
	var out []symbols.Location
	for _, s := range syms {
		if s.Name != name || s.Location == nil || s.Location.Range == nil {
			continue
		}
		rel, ok := relativePath(b.root, s.Location.URI)
		if !ok || (b.opts.Exclude != nil && b.opts.Exclude(rel)) {
			continue
		}
		loc, ok := toLocation(documentSymbol{Name: s.Name, Kind: s.Kind, Location: s.Location}, rel)
		if !ok {
			continue
		}
		out = append(out, loc)
		if b.opts.MaxLocations > 0 && len(out) >= b.opts.MaxLocations {
			break
		}
	}
	return out
}

// Close asks the server to shut down and stops it.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.unavailable = true
	b.mu.Unlock()

	if b.conn == nil {
		return nil
	}
	select {
	case <-b.conn.Done():
	default:
		ctx, cancel := context.WithTimeout(context.Background(), b.opts.Timeout)
		_ = b.conn.Call(ctx, "shutdown", nil, nil)
		cancel()
		_ = b.conn.Notify("exit", nil)
	}
	if b.proc != nil {
		select {
		case <-b.proc.Exited():
		case <-time.After(exitGrace):
			b.log.Debug("language server ignored exit, killing")
		}
		return b.proc.Kill()
	}
	return b.conn.Close()
}

// exitGrace is how long Close waits for the server to leave on its own.
const exitGrace = 2 * time.Second

var _ symbols.Backend = (*Backend)(nil)
