package engine

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"reviewctx/internal/chunks"
	"reviewctx/internal/diff"
	rerrors "reviewctx/internal/errors"
	"reviewctx/internal/pathcfg"
	"reviewctx/internal/plugins"
	"reviewctx/internal/slogutil"
	"reviewctx/internal/symbols"
)

// DefaultMaxCandidates caps identifier lookups per changed file.
const DefaultMaxCandidates = 64

// FocusOrigin stamps the chunk listing a path rule's focus areas.
const FocusOrigin = "focus"

// Lookuper resolves identifiers to declaration sites.
type Lookuper interface {
	Lookup(ctx context.Context, name, hint string) ([]symbols.Location, error)
}

// AssemblerOptions bounds assembly. Zero budgets disable the limit; zero
// extra-context caps mean no cap.
type AssemblerOptions struct {
	MaxContextChars      int
	MaxDiffChars         int
	DefinitionMaxLines   int
	ExtraContextMaxFiles int
	ExtraContextMaxLines int
	MaxCandidates        int
	Concurrency          int
}

// Input is everything one assembly reads. Symbols and Plugins may be nil.
type Input struct {
	Files       []diff.File
	Root        string
	Resolver    *pathcfg.Resolver
	Symbols     Lookuper
	Plugins     *plugins.Registry
	Diagnostics *rerrors.Collector
}

// Stats summarizes an assembly.
type Stats struct {
	Files          int  `json:"files"`
	ExcludedFiles  int  `json:"excludedFiles"`
	Candidates     int  `json:"candidates"`
	HunkChunks     int  `json:"hunkChunks"`
	SymbolChunks   int  `json:"symbolChunks"`
	ExtraChunks    int  `json:"extraChunks"`
	PluginChunks   int  `json:"pluginChunks"`
	Duplicates     int  `json:"duplicates"`
	DroppedDiff    int  `json:"droppedDiff"`
	DroppedContext int  `json:"droppedContext"`
	DiffChars      int  `json:"diffChars"`
	TotalChars     int  `json:"totalChars"`
	Truncated      bool `json:"truncated"`
}

// Assembly is the ranked, budgeted output.
type Assembly struct {
	Chunks    []chunks.Chunk      `json:"chunks"`
	Effective []pathcfg.Effective `json:"effective"`
	Stats     Stats               `json:"stats"`
}

// Assembler turns parsed files into context chunks.
type Assembler struct {
	opts AssemblerOptions
	log  *slog.Logger
}

// NewAssembler creates an assembler.
func NewAssembler(opts AssemblerOptions, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	return &Assembler{opts: opts, log: logger}
}

// fileResult is one file's output, kept per tier until the merge.
type fileResult struct {
	symbols    []chunks.Chunk
	extra      []chunks.Chunk
	plugins    []chunks.Chunk
	candidates int
	diags      *rerrors.Collector
}

// Assemble runs the per-file work concurrently and merges it in diff order,
// so the output does not depend on completion order.
func (a *Assembler) Assemble(ctx context.Context, in Input) (*Assembly, error) {
	resolver := in.Resolver
	if resolver == nil {
		resolver, _ = pathcfg.NewResolver(pathcfg.Defaults{}, nil)
	}

	out := &Assembly{Effective: make([]pathcfg.Effective, len(in.Files))}
	for i := range in.Files {
		out.Effective[i] = resolver.Resolve(in.Files[i].Path())
	}

	cache := newFileCache(in.Root)
	var fsys fs.FS
	if in.Root != "" {
		fsys = os.DirFS(in.Root)
	}

	results := make([]fileResult, len(in.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i := range in.Files {
		i := i
		file := &in.Files[i]
		eff := out.Effective[i]
		if eff.Excluded {
			continue
		}
		g.Go(func() error {
			r := fileResult{diags: rerrors.NewCollector()}
			var err error
			if !file.IsBinary && !file.IsDeleted {
				r.symbols, r.candidates, err = a.symbolChunks(gctx, in, resolver, cache, file)
				if err != nil {
					return err
				}
			}
			if fsys != nil {
				r.extra, err = a.extraChunks(gctx, fsys, resolver, cache, file, eff)
				if err != nil {
					return err
				}
			}
			if c, ok := focusChunk(file, eff); ok {
				r.plugins = append(r.plugins, c)
			}
			notes, err := in.Plugins.Run(gctx, file, in.Root, r.diags)
			if err != nil {
				return err
			}
			r.plugins = append(r.plugins, notes...)
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var hunks, syms, extra, plugs []chunks.Chunk
	for i := range in.Files {
		file := &in.Files[i]
		out.Stats.Files++
		if out.Effective[i].Excluded {
			out.Stats.ExcludedFiles++
		}
		hunks = append(hunks, hunkChunks(file)...)
		r := results[i]
		out.Stats.Candidates += r.candidates
		syms = append(syms, r.symbols...)
		extra = append(extra, r.extra...)
		plugs = append(plugs, r.plugins...)
		if r.diags != nil {
			in.Diagnostics.Add(r.diags.Items()...)
		}
	}

	ranked := make([]chunks.Chunk, 0, len(hunks)+len(syms)+len(extra)+len(plugs))
	ranked = append(ranked, hunks...)
	ranked = append(ranked, syms...)
	ranked = append(ranked, extra...)
	ranked = append(ranked, plugs...)

	deduped := make([]chunks.Chunk, 0, len(ranked))
	seen := make(map[chunks.Key]struct{}, len(ranked))
	for _, c := range ranked {
		k := c.DedupKey()
		if _, dup := seen[k]; dup {
			out.Stats.Duplicates++
			continue
		}
		seen[k] = struct{}{}
		deduped = append(deduped, c)
	}

	out.Chunks = a.budget(deduped, &out.Stats)
	a.log.Debug("assembled context",
		"files", out.Stats.Files,
		"chunks", len(out.Chunks),
		"chars", out.Stats.TotalChars,
		"truncated", out.Stats.Truncated,
	)
	return out, nil
}

// budget keeps ranked chunks while they fit. Hunks stop at the first one
// over max_diff_chars; any chunk over max_context_chars ends the output.
func (a *Assembler) budget(ranked []chunks.Chunk, st *Stats) []chunks.Chunk {
	kept := make([]chunks.Chunk, 0, len(ranked))
	diffClosed := false
	for i, c := range ranked {
		size := c.Size()
		if c.Source == chunks.SourceHunk {
			if diffClosed {
				st.DroppedDiff++
				continue
			}
			if a.opts.MaxDiffChars > 0 && st.DiffChars+size > a.opts.MaxDiffChars {
				diffClosed = true
				st.Truncated = true
				st.DroppedDiff++
				continue
			}
		}
		if a.opts.MaxContextChars > 0 && st.TotalChars+size > a.opts.MaxContextChars {
			st.Truncated = true
			st.DroppedContext += len(ranked) - i
			break
		}
		kept = append(kept, c)
		st.TotalChars += size
		switch c.Source {
		case chunks.SourceHunk:
			st.DiffChars += size
			st.HunkChunks++
		case chunks.SourceSymbol:
			st.SymbolChunks++
		case chunks.SourceExtraFile:
			st.ExtraChunks++
		case chunks.SourcePlugin:
			st.PluginChunks++
		}
	}
	return kept
}

func hunkChunks(file *diff.File) []chunks.Chunk {
	path := file.Path()
	out := make([]chunks.Chunk, 0, len(file.Hunks))
	for _, h := range file.Hunks {
		c := chunks.Chunk{Source: chunks.SourceHunk, Path: path, Text: h.Text()}
		if h.NewCount > 0 {
			c.StartLine, c.EndLine = h.NewStart, h.NewStart+h.NewCount-1
		} else if h.OldCount > 0 {
			c.StartLine, c.EndLine = h.OldStart, h.OldStart+h.OldCount-1
		}
		out = append(out, c)
	}
	return out
}

// focusChunk turns the file's focus areas into a note ahead of the
// analyzer output.
func focusChunk(file *diff.File, eff pathcfg.Effective) (chunks.Chunk, bool) {
	if len(eff.Focus) == 0 {
		return chunks.Chunk{}, false
	}
	return chunks.Chunk{
		Source: chunks.SourcePlugin,
		Path:   file.Path(),
		Text:   "Focus areas for this file: " + strings.Join(eff.Focus, ", "),
		Origin: FocusOrigin,
	}, true
}

// symbolChunks looks up the identifiers on the file's added lines. Lookup
// failures are misses; only cancellation aborts.
func (a *Assembler) symbolChunks(ctx context.Context, in Input, resolver *pathcfg.Resolver, cache *fileCache, file *diff.File) ([]chunks.Chunk, int, error) {
	if in.Symbols == nil {
		return nil, 0, nil
	}
	added := file.AddedLines()
	texts := make([]string, len(added))
	for i, l := range added {
		texts[i] = l.Text
	}
	candidates := Identifiers(texts, a.opts.MaxCandidates)
	ranges := file.AddedRanges()
	path := file.Path()

	var out []chunks.Chunk
	for _, name := range candidates {
		locs, err := in.Symbols.Lookup(ctx, name, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			continue
		}
		for _, loc := range locs {
			if loc.Path == path && inRanges(ranges, loc.Line) {
				continue
			}
			if resolver.IsExcluded(loc.Path) {
				continue
			}
			c, ok, err := a.definition(ctx, cache, loc)
			if err != nil {
				return nil, 0, err
			}
			if ok {
				out = append(out, c)
			}
		}
	}
	return out, len(candidates), nil
}

func inRanges(ranges []diff.Range, line int) bool {
	for _, r := range ranges {
		if r.Contains(line) {
			return true
		}
	}
	return false
}

// definition reads the window around a declaration: two lines before it,
// then its known span or three lines after, capped at DefinitionMaxLines.
func (a *Assembler) definition(ctx context.Context, cache *fileCache, loc symbols.Location) (chunks.Chunk, bool, error) {
	lines, err := cache.Lines(ctx, loc.Path)
	if err != nil || lines == nil {
		return chunks.Chunk{}, false, err
	}
	start := loc.Line - 2
	if start < 1 {
		start = 1
	}
	end := loc.Line + 3
	if loc.EndLine >= loc.Line {
		end = loc.EndLine
	}
	if limit := a.opts.DefinitionMaxLines; limit > 0 && end-start+1 > limit {
		end = start + limit - 1
	}
	text, from, to, ok := excerpt(lines, start, end)
	if !ok {
		return chunks.Chunk{}, false, nil
	}
	return chunks.Chunk{
		Source:    chunks.SourceSymbol,
		Path:      loc.Path,
		Text:      text,
		StartLine: from,
		EndLine:   to,
		Symbol:    loc.Name,
	}, true, nil
}

// extraChunks expands the file's extra_context globs against the checkout.
func (a *Assembler) extraChunks(ctx context.Context, fsys fs.FS, resolver *pathcfg.Resolver, cache *fileCache, file *diff.File, eff pathcfg.Effective) ([]chunks.Chunk, error) {
	if len(eff.ExtraContext) == 0 {
		return nil, nil
	}
	unique := make(map[string]struct{})
	var paths []string
	for _, pattern := range eff.ExtraContext {
		matches, err := doublestar.Glob(fsys, pathcfg.Normalize(pattern), doublestar.WithFilesOnly())
		if err != nil {
			a.log.Debug("extra context glob failed", "pattern", pattern, "error", err)
			continue
		}
		for _, m := range matches {
			if _, ok := unique[m]; ok || m == file.Path() || resolver.IsExcluded(m) {
				continue
			}
			unique[m] = struct{}{}
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)
	if n := a.opts.ExtraContextMaxFiles; n > 0 && len(paths) > n {
		paths = paths[:n]
	}

	var out []chunks.Chunk
	for _, p := range paths {
		lines, err := cache.Lines(ctx, p)
		if err != nil {
			return nil, err
		}
		if lines == nil {
			continue
		}
		end := len(lines)
		if n := a.opts.ExtraContextMaxLines; n > 0 && end > n {
			end = n
		}
		text, from, to, ok := excerpt(lines, 1, end)
		if !ok {
			continue
		}
		out = append(out, chunks.Chunk{
			Source:    chunks.SourceExtraFile,
			Path:      p,
			Text:      text,
			StartLine: from,
			EndLine:   to,
		})
	}
	return out, nil
}
