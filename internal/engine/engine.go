// Package engine turns a unified diff and a repository checkout into the
// ranked, budgeted context a review prompt is built from.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"reviewctx/internal/backends/lsp"
	"reviewctx/internal/chunks"
	"reviewctx/internal/config"
	"reviewctx/internal/diff"
	rerrors "reviewctx/internal/errors"
	"reviewctx/internal/pathcfg"
	"reviewctx/internal/plugins"
	"reviewctx/internal/repo"
	"reviewctx/internal/slogutil"
	"reviewctx/internal/symbols"
	"reviewctx/internal/toolchain"
)

// State is a step of a run.
type State string

const (
	StateIdle             State = "idle"
	StateParsing          State = "parsing"
	StateParseFailed      State = "parse_failed"
	StateConfigResolved   State = "config_resolved"
	StateIndexBuildFailed State = "index_build_failed"
	StateIndexReady       State = "index_ready"
	StateAssembling       State = "assembling"
	StateDone             State = "done"
)

// Options configures an Engine. Runner resolves and runs external binaries
// and defaults to the real one. Plugins replaces the registry built from the
// configuration.
type Options struct {
	Root    string
	Config  *config.Config
	Runner  toolchain.ExecRunner
	Plugins *plugins.Registry
	Logger  *slog.Logger
}

// Engine runs context assembly for one repository.
type Engine struct {
	root      string
	cfg       *config.Config
	runner    toolchain.ExecRunner
	plugins   *plugins.Registry
	assembler *Assembler
	log       *slog.Logger
}

// Result is the outcome of a run.
type Result struct {
	RunID       string               `json:"runId"`
	Files       []diff.File          `json:"files"`
	Effective   []pathcfg.Effective  `json:"effective"`
	Chunks      []chunks.Chunk       `json:"chunks"`
	Diagnostics []rerrors.Diagnostic `json:"diagnostics"`
	Trace       []State              `json:"trace"`
	Stats       Stats                `json:"stats"`
	Backend     string               `json:"backend,omitempty"`
	Duration    time.Duration        `json:"-"`
}

// New validates the repository root and prepares an engine.
func New(opts Options) (*Engine, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, rerrors.New(rerrors.InvalidConfig, "resolve repository root", err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, rerrors.New(rerrors.InvalidConfig, fmt.Sprintf("repository root %s is not a directory", root), err)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, rerrors.New(rerrors.InvalidConfig, "invalid configuration", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	runner := opts.Runner
	if runner == nil {
		runner = toolchain.NewCachingRunner(toolchain.NewRealRunner(time.Duration(cfg.Plugins.TimeoutMs) * time.Millisecond))
	}

	reg := opts.Plugins
	if reg == nil {
		reg = plugins.NewRegistry(time.Duration(cfg.Plugins.TimeoutMs)*time.Millisecond, logger)
		if cfg.Plugins.Eslint {
			reg.Register(plugins.NewEslint(runner))
		}
		if cfg.Plugins.Semgrep {
			reg.Register(plugins.NewSemgrep(runner))
		}
	}

	return &Engine{
		root:    root,
		cfg:     cfg,
		runner:  runner,
		plugins: reg,
		assembler: NewAssembler(AssemblerOptions{
			MaxContextChars:      cfg.MaxContextChars,
			MaxDiffChars:         cfg.MaxDiffChars,
			DefinitionMaxLines:   cfg.DefinitionMaxLines,
			ExtraContextMaxFiles: cfg.ExtraContextMaxFiles,
			ExtraContextMaxLines: cfg.ExtraContextMaxLines,
			Concurrency:          cfg.Concurrency,
		}, logger),
		log: logger,
	}, nil
}

// Root returns the absolute repository root.
func (e *Engine) Root() string { return e.root }

// Run parses diffText and assembles its context. Only an input that is not a
// diff at all, or cancellation of ctx, is an error; everything else is
// reported in Result.Diagnostics.
func (e *Engine) Run(ctx context.Context, diffText string) (*Result, error) {
	started := time.Now()
	res := &Result{RunID: uuid.NewString(), Trace: []State{StateIdle}}
	log := e.log.With("run", res.RunID)
	diags := rerrors.NewCollector()

	res.Trace = append(res.Trace, StateParsing)
	parsed, err := diff.Parse(diffText)
	if err != nil {
		res.Trace = append(res.Trace, StateParseFailed)
		log.Error("diff parse failed", "error", err)
		return res, err
	}
	res.Files = parsed.Files
	for _, w := range parsed.Warnings {
		diags.Add(rerrors.Warn(rerrors.ParseWarning, w.Path, w.String()))
	}

	resolver, cfgDiags := pathcfg.NewResolver(e.cfg.PathDefaults(), e.cfg.Paths)
	diags.Add(cfgDiags...)
	res.Trace = append(res.Trace, StateConfigResolved)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	var svc *symbols.Service
	if e.cfg.SymbolIndex {
		svc, err = e.symbolService(ctx, resolver, parsed.Files, diags, log)
		if err != nil {
			return res, err
		}
		defer func() {
			if err := svc.Close(); err != nil {
				log.Debug("closing symbol backend", "error", err)
			}
		}()
		if e.cfg.SymbolIndexEager {
			if err := svc.Ensure(ctx); err != nil {
				return res, err
			}
			if svc.FellBack() {
				res.Trace = append(res.Trace, StateIndexBuildFailed)
			}
		}
	}
	res.Trace = append(res.Trace, StateIndexReady)

	res.Trace = append(res.Trace, StateAssembling)
	in := Input{
		Files:       parsed.Files,
		Root:        e.root,
		Resolver:    resolver,
		Plugins:     e.plugins,
		Diagnostics: diags,
	}
	if svc != nil {
		in.Symbols = svc
	}
	asm, err := e.assembler.Assemble(ctx, in)
	if err != nil {
		return res, err
	}
	if svc != nil {
		res.Backend = svc.Active()
	}

	res.Chunks = asm.Chunks
	res.Effective = asm.Effective
	res.Stats = asm.Stats
	res.Diagnostics = diags.Items()
	res.Trace = append(res.Trace, StateDone)
	res.Duration = time.Since(started)
	log.Info("run complete",
		"files", len(res.Files),
		"chunks", len(res.Chunks),
		"diagnostics", len(res.Diagnostics),
		"backend", res.Backend,
		"duration", res.Duration,
	)
	return res, nil
}

// symbolService selects the backend for this run. A language server is used
// only when one resolves; otherwise the static index serves and the reason
// is recorded.
func (e *Engine) symbolService(ctx context.Context, resolver *pathcfg.Resolver, changed []diff.File, diags *rerrors.Collector, log *slog.Logger) (*symbols.Service, error) {
	files, err := (&repo.Lister{Root: e.root, Exclude: resolver.IsExcluded, Logger: log}).List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		diags.Add(rerrors.Warn(rerrors.IndexBuildFailed, "", "listing repository files: "+err.Error()))
	}
	files = changedFirst(changed, files)

	static := symbols.NewStaticBackend(symbols.StaticOptions{
		MaxFiles:     e.cfg.SymbolIndexMaxFiles,
		MaxBytes:     e.cfg.SymbolIndexMaxBytes,
		MaxLocations: e.cfg.SymbolIndexMaxLocations,
		Concurrency:  e.cfg.Concurrency,
		TreeSitter:   e.cfg.SymbolIndexStaticParser == config.ParserTreeSitter,
		Exclude:      resolver.IsExcluded,
		Logger:       log,
	})

	var primary symbols.Backend
	if e.cfg.SymbolIndexProvider == config.ProviderLSP {
		report := symbols.Preflight(ctx, symbols.PreflightOptions{
			Provider:  e.cfg.SymbolIndexProvider,
			Command:   e.cfg.SymbolIndexLspCommand,
			Languages: e.cfg.SymbolIndexLspLanguages,
			Files:     files,
			Runner:    e.runner,
		})
		if report.Available && len(report.Languages) > 0 {
			primary = lsp.New(lsp.Options{
				Command:      report.Path,
				Args:         report.Args,
				Languages:    report.Languages,
				Timeout:      time.Duration(e.cfg.SymbolIndexLspTimeoutMs) * time.Millisecond,
				MaxFailures:  e.cfg.SymbolIndexLspMaxFailures,
				MaxFiles:     e.cfg.SymbolIndexMaxFiles,
				MaxBytes:     e.cfg.SymbolIndexMaxBytes,
				MaxLocations: e.cfg.SymbolIndexMaxLocations,
				Concurrency:  e.cfg.Concurrency,
				Exclude:      resolver.IsExcluded,
				Logger:       log,
			})
			log.Debug("language server selected", "command", report.Command, "source", report.Source)
		} else {
			msg := "no usable language server, using static index"
			if len(report.Messages) > 0 {
				msg += ": " + report.Messages[0]
			}
			log.Warn(msg)
			diags.Add(rerrors.Warn(rerrors.BackendUnavailable, "", msg))
		}
	}

	return symbols.NewService(primary, static, symbols.ServiceOptions{
		Root:        e.root,
		Files:       files,
		Logger:      log,
		Diagnostics: diags,
	}), nil
}

// changedFirst moves the diff's files to the front, in diff order.
func changedFirst(changed []diff.File, files []string) []string {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
	}
	out := make([]string, 0, len(files))
	front := make(map[string]bool)
	for i := range changed {
		p := changed[i].Path()
		if present[p] && !front[p] {
			front[p] = true
			out = append(out, p)
		}
	}
	for _, f := range files {
		if !front[f] {
			out = append(out, f)
		}
	}
	return out
}

// Preflight reports which symbol backend a run would use. It lists the
// repository but never starts a language server.
func (e *Engine) Preflight(ctx context.Context) (symbols.Report, []rerrors.Diagnostic, error) {
	resolver, diags := pathcfg.NewResolver(e.cfg.PathDefaults(), e.cfg.Paths)
	files, err := repo.ListFiles(ctx, e.root, resolver.IsExcluded)
	if err != nil {
		return symbols.Report{}, diags, err
	}
	provider := e.cfg.SymbolIndexProvider
	if !e.cfg.SymbolIndex {
		provider = "disabled"
	}
	report := symbols.Preflight(ctx, symbols.PreflightOptions{
		Provider:  provider,
		Command:   e.cfg.SymbolIndexLspCommand,
		Languages: e.cfg.SymbolIndexLspLanguages,
		Files:     files,
		Runner:    e.runner,
	})
	return report, diags, nil
}
