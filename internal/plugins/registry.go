// Package plugins runs pre-analyzers whose output is added to the review
// context as plugin chunks.
package plugins

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reviewctx/internal/chunks"
	"reviewctx/internal/diff"
	rerrors "reviewctx/internal/errors"
	"reviewctx/internal/slogutil"
)

// PreAnalyzer inspects one changed file before assembly.
type PreAnalyzer interface {
	ID() string
	// Run returns chunks for file; root is the repository checkout.
	Run(ctx context.Context, file *diff.File, root string) ([]chunks.Chunk, error)
}

// Registry holds analyzers in registration order.
type Registry struct {
	analyzers []PreAnalyzer
	timeout   time.Duration
	log       *slog.Logger
}

// NewRegistry creates a registry applying timeout to every analyzer call.
// A zero timeout leaves calls bounded by the caller's context only.
func NewRegistry(timeout time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Registry{timeout: timeout, log: logger}
}

// Register adds analyzers.
func (r *Registry) Register(a ...PreAnalyzer) {
	r.analyzers = append(r.analyzers, a...)
}

// Len returns the number of registered analyzers.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.analyzers)
}

// IDs lists analyzer IDs in order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, len(r.analyzers))
	for i, a := range r.analyzers {
		ids[i] = a.ID()
	}
	return ids
}

// Run calls every analyzer for file. Failures and timeouts are recorded in
// diags and never stop the others; only cancellation of ctx is returned.
func (r *Registry) Run(ctx context.Context, file *diff.File, root string, diags *rerrors.Collector) ([]chunks.Chunk, error) {
	if r == nil {
		return nil, nil
	}
	var out []chunks.Chunk
	for _, a := range r.analyzers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		got, err := r.runOne(ctx, a, file, root)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			code := rerrors.PluginFailed
			if errors.Is(err, context.DeadlineExceeded) {
				code = rerrors.Timeout
			}
			r.log.Warn("pre-analyzer failed", "analyzer", a.ID(), "path", file.Path(), "error", err)
			diags.Add(rerrors.Warn(code, file.Path(), a.ID()+": "+err.Error()))
			continue
		}
		for _, c := range got {
			c.Source = chunks.SourcePlugin
			c.Origin = a.ID()
			if c.Path == "" {
				c.Path = file.Path()
			}
			if c.Text == "" {
				continue
			}
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *Registry) runOne(ctx context.Context, a PreAnalyzer, file *diff.File, root string) (got []chunks.Chunk, err error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = rerrors.Errorf(rerrors.PluginFailed, "panic: %v", p)
		}
	}()
	return a.Run(ctx, file, root)
}
