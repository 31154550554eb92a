package plugins

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"reviewctx/internal/chunks"
	"reviewctx/internal/diff"
	"reviewctx/internal/repo"
	"reviewctx/internal/toolchain"
)

// CommandAnalyzer runs an external linter on a changed file and wraps its
// stdout in a single chunk.
type CommandAnalyzer struct {
	Name   string
	Binary string
	// Args precede the absolute file path.
	Args []string
	// Extensions limits the analyzer to these lowercase extensions; empty
	// means every file.
	Extensions []string
	// Title heads the chunk text.
	Title  string
	Runner toolchain.ExecRunner
}

// NewEslint returns the builtin eslint analyzer.
func NewEslint(runner toolchain.ExecRunner) *CommandAnalyzer {
	return &CommandAnalyzer{
		Name:       "eslint",
		Binary:     "eslint",
		Args:       []string{"--format=json", "--no-eslintrc"},
		Extensions: []string{"js", "jsx", "ts", "tsx"},
		Title:      "ESLint analysis:",
		Runner:     runner,
	}
}

// NewSemgrep returns the builtin semgrep analyzer.
func NewSemgrep(runner toolchain.ExecRunner) *CommandAnalyzer {
	return &CommandAnalyzer{
		Name:   "semgrep",
		Binary: "semgrep",
		Args:   []string{"--config=auto", "--json", "--quiet"},
		Title:  "Semgrep analysis:",
		Runner: runner,
	}
}

func (a *CommandAnalyzer) ID() string { return a.Name }

func (a *CommandAnalyzer) applies(path string) bool {
	if len(a.Extensions) == 0 {
		return true
	}
	ext := repo.Ext(path)
	for _, e := range a.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Run skips deleted and binary files. Linters exit non-zero when they report
// findings, so a failed exit with output on stdout still yields a chunk.
func (a *CommandAnalyzer) Run(ctx context.Context, file *diff.File, root string) ([]chunks.Chunk, error) {
	path := file.Path()
	if file.IsDeleted || file.IsBinary || !a.applies(path) {
		return nil, nil
	}
	abs := filepath.Join(root, filepath.FromSlash(path))
	args := append(append([]string{}, a.Args...), abs)

	out, err := a.Runner.Run(ctx, toolchain.Command{Name: a.Binary, Args: args, Dir: root})
	stdout := strings.TrimSpace(out.Stdout)
	if err != nil {
		if !toolchain.IsExitError(err) || stdout == "" {
			return nil, fmt.Errorf("%s: %w", a.Binary, err)
		}
	}
	if stdout == "" {
		return nil, nil
	}
	return []chunks.Chunk{{
		Source: chunks.SourcePlugin,
		Path:   path,
		Text:   a.Title + "\n" + stdout,
	}}, nil
}
