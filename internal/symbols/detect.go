package symbols

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattn/go-shellwords"

	"reviewctx/internal/repo"
	"reviewctx/internal/toolchain"
)

// Server describes a language server binary and the extensions it serves,
// mapped to LSP language identifiers.
type Server struct {
	Binary    string
	Args      []string
	Languages map[string]string
}

// KnownServers is consulted in order when several servers handle the same
// extension.
var KnownServers = []Server{
	{Binary: "gopls", Languages: map[string]string{"go": "go"}},
	{Binary: "rust-analyzer", Languages: map[string]string{"rs": "rust"}},
	{Binary: "typescript-language-server", Args: []string{"--stdio"}, Languages: map[string]string{
		"ts": "typescript", "tsx": "typescriptreact",
		"js": "javascript", "jsx": "javascriptreact", "mjs": "javascript", "cjs": "javascript",
	}},
	{Binary: "pyright-langserver", Args: []string{"--stdio"}, Languages: map[string]string{"py": "python"}},
	{Binary: "pylsp", Languages: map[string]string{"py": "python"}},
	{Binary: "jdtls", Languages: map[string]string{"java": "java"}},
	{Binary: "kotlin-language-server", Languages: map[string]string{"kt": "kotlin"}},
	{Binary: "clangd", Languages: map[string]string{"c": "c", "h": "c", "cc": "cpp", "cpp": "cpp", "hpp": "cpp"}},
	{Binary: "solargraph", Args: []string{"stdio"}, Languages: map[string]string{"rb": "ruby"}},
	{Binary: "intelephense", Args: []string{"--stdio"}, Languages: map[string]string{"php": "php"}},
	{Binary: "csharp-ls", Languages: map[string]string{"cs": "csharp"}},
	{Binary: "dart", Args: []string{"language-server"}, Languages: map[string]string{"dart": "dart"}},
	{Binary: "sourcekit-lsp", Languages: map[string]string{"swift": "swift"}},
	{Binary: "metals", Languages: map[string]string{"scala": "scala"}},
}

// Detection is a server found on PATH.
type Detection struct {
	Server Server
	Path   string
	// Extension is the histogram entry that selected the server.
	Extension string
}

// Detect walks extensions by descending file count and returns the first
// known server whose binary resolves. ok is false when none does.
func Detect(hist []repo.ExtCount, runner toolchain.ExecRunner) (Detection, bool) {
	for _, ec := range hist {
		for _, s := range KnownServers {
			if _, ok := s.Languages[ec.Ext]; !ok {
				continue
			}
			p, err := runner.LookPath(s.Binary)
			if err != nil {
				continue
			}
			return Detection{Server: s, Path: p, Extension: ec.Ext}, true
		}
	}
	return Detection{}, false
}

// SplitCommand splits a configured command line with shell quoting rules.
func SplitCommand(line string) (string, []string, error) {
	words, err := shellwords.Parse(line)
	if err != nil {
		return "", nil, fmt.Errorf("split %q: %w", line, err)
	}
	if len(words) == 0 {
		return "", nil, fmt.Errorf("empty command")
	}
	return words[0], words[1:], nil
}

// knownLanguages returns the language map of the known server named like bin.
func knownLanguages(bin string) map[string]string {
	base := filepath.Base(bin)
	for _, s := range KnownServers {
		if s.Binary == base {
			return s.Languages
		}
	}
	return nil
}

// Command sources reported by Preflight.
const (
	SourceConfigured = "configured"
	SourceDetected   = "detected"
	SourceNone       = "none"
)

// PreflightOptions are the inputs of a preflight check.
type PreflightOptions struct {
	Provider  string
	Command   string
	Languages map[string]string
	// Files is the repository listing, already filtered by exclusions.
	Files  []string
	Runner toolchain.ExecRunner
}

// Report describes which backend a run would use and why.
type Report struct {
	Provider           string            `json:"provider"`
	Command            string            `json:"command,omitempty"`
	Args               []string          `json:"args,omitempty"`
	Source             string            `json:"source"`
	Available          bool              `json:"available"`
	Path               string            `json:"path,omitempty"`
	Languages          map[string]string `json:"languages,omitempty"`
	Histogram          []repo.ExtCount   `json:"histogram"`
	UnmappedExtensions []string          `json:"unmappedExtensions,omitempty"`
	Messages           []string          `json:"messages,omitempty"`
}

// Preflight resolves the language server command without starting it.
func Preflight(ctx context.Context, opts PreflightOptions) Report {
	r := Report{
		Provider:  opts.Provider,
		Source:    SourceNone,
		Histogram: repo.Histogram(opts.Files),
	}
	if opts.Provider != "lsp" {
		r.Messages = append(r.Messages, "static pattern scanner selected")
		return r
	}
	if ctx.Err() != nil {
		r.Messages = append(r.Messages, ctx.Err().Error())
		return r
	}

	if opts.Command != "" {
		bin, args, err := SplitCommand(opts.Command)
		if err != nil {
			r.Messages = append(r.Messages, "symbol_index_lsp_command: "+err.Error())
			return r
		}
		r.Command, r.Args, r.Source = bin, args, SourceConfigured
		r.Languages = knownLanguages(bin)
		if p, err := opts.Runner.LookPath(bin); err == nil {
			r.Available, r.Path = true, p
		} else {
			r.Messages = append(r.Messages, fmt.Sprintf("%s not found on PATH", bin))
		}
	} else if d, ok := Detect(r.Histogram, opts.Runner); ok {
		r.Command, r.Args, r.Source = d.Server.Binary, d.Server.Args, SourceDetected
		r.Available, r.Path = true, d.Path
		r.Languages = d.Server.Languages
		r.Messages = append(r.Messages, fmt.Sprintf("detected %s for .%s files", d.Server.Binary, d.Extension))
	} else {
		r.Messages = append(r.Messages, "no known language server found on PATH")
	}

	if len(opts.Languages) > 0 {
		r.Languages = opts.Languages
	}
	if r.Command != "" && len(r.Languages) == 0 {
		r.Messages = append(r.Messages, "no language mapping for "+r.Command+"; set symbol_index_lsp_languages")
	}
	if !r.Available {
		r.Messages = append(r.Messages, "static pattern scanner will be used")
	}

	for _, ec := range r.Histogram {
		if _, ok := r.Languages[ec.Ext]; !ok && HasPatterns(ec.Ext) {
			r.UnmappedExtensions = append(r.UnmappedExtensions, ec.Ext)
		}
	}
	sort.Strings(r.UnmappedExtensions)
	return r
}

// LanguageID returns the LSP language identifier for path, or "".
func LanguageID(languages map[string]string, path string) string {
	return languages[strings.ToLower(repo.Ext(path))]
}
