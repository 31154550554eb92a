package symbols

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	rerrors "reviewctx/internal/errors"
	"reviewctx/internal/slogutil"
)

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Root string
	// Files are repository-relative paths handed to Build.
	Files       []string
	Logger      *slog.Logger
	Diagnostics *rerrors.Collector
}

// Service answers lookups from the selected backend. When the primary
// backend fails to build or stops being available, the static backend takes
// over for the rest of the run; the switch never goes back.
type Service struct {
	primary Backend
	static  *StaticBackend
	opts    ServiceOptions
	log     *slog.Logger

	buildOnce sync.Once
	buildErr  error

	staticOnce sync.Once
	staticErr  error

	mu       sync.Mutex
	fellBack bool
}

// NewService creates a service. primary may be nil, in which case the
// static backend serves every lookup.
func NewService(primary Backend, static *StaticBackend, opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}
	return &Service{primary: primary, static: static, opts: opts, log: opts.Logger}
}

// Ensure builds the index now instead of on the first lookup. The returned
// error is non-nil only when ctx ends; build failures are diagnostics.
func (s *Service) Ensure(ctx context.Context) error {
	s.buildOnce.Do(func() { s.buildErr = s.build(ctx) })
	return s.buildErr
}

func (s *Service) build(ctx context.Context) error {
	if s.primary == nil {
		return s.ensureStatic(ctx)
	}
	err := s.primary.Build(ctx, s.opts.Root, s.opts.Files)
	if err == nil && s.primary.Available() {
		s.log.Debug("symbol index ready", "backend", s.primary.Name())
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == nil {
		err = rerrors.New(rerrors.BackendUnavailable, s.primary.Name()+" became unavailable during build", nil)
	}
	s.switchToStatic(rerrors.IndexBuildFailed, err)
	return s.ensureStatic(ctx)
}

func (s *Service) ensureStatic(ctx context.Context) error {
	s.staticOnce.Do(func() {
		s.staticErr = s.static.Build(ctx, s.opts.Root, s.opts.Files)
	})
	return s.staticErr
}

func (s *Service) switchToStatic(code rerrors.ErrorCode, cause error) {
	s.mu.Lock()
	if s.fellBack {
		s.mu.Unlock()
		return
	}
	s.fellBack = true
	s.mu.Unlock()

	s.log.Warn("falling back to static symbol index",
		"backend", s.primary.Name(),
		"error", cause,
	)
	s.opts.Diagnostics.Add(rerrors.Diagnostic{
		Code:     code,
		Severity: rerrors.SeverityWarning,
		Message:  s.primary.Name() + " backend failed, using static index: " + cause.Error(),
	})
	if err := s.primary.Close(); err != nil {
		s.log.Debug("closing failed backend", "error", err)
	}
}

// FellBack reports whether the static backend replaced the primary one.
func (s *Service) FellBack() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fellBack
}

// Active names the backend currently answering lookups.
func (s *Service) Active() string {
	if s.primary == nil || s.FellBack() {
		return s.static.Name()
	}
	return s.primary.Name()
}

// Lookup returns the declaration sites of name, building the index first if
// needed. Backend failures are absorbed; only ctx errors are returned.
func (s *Service) Lookup(ctx context.Context, name, hint string) ([]Location, error) {
	if err := s.Ensure(ctx); err != nil {
		return nil, err
	}
	if s.primary != nil && !s.FellBack() {
		locs, err := s.primary.Lookup(ctx, name, hint)
		if err == nil {
			return locs, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if s.primary.Available() {
			// a single failed request is a miss
			if rerrors.HasCode(err, rerrors.Timeout) {
				s.opts.Diagnostics.Add(rerrors.Warn(rerrors.Timeout, hint, "lookup of "+name+" timed out"))
			}
			return nil, nil
		}
		s.switchToStatic(rerrors.BackendUnavailable, err)
	}
	if err := s.ensureStatic(ctx); err != nil {
		return nil, err
	}
	return s.static.Lookup(ctx, name, hint)
}

// Close releases the primary backend.
func (s *Service) Close() error {
	if s.primary == nil || s.FellBack() {
		return nil
	}
	err := s.primary.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
