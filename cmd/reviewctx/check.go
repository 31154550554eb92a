package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"reviewctx/internal/engine"
	rerrors "reviewctx/internal/errors"
	"reviewctx/internal/symbols"
)

var checkFormat string

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	dimColor   = color.New(color.FgHiBlack)
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report which symbol backend a run would use",
	Long: `Check resolves the language server command (configured or detected from the
repository's file extensions) without starting it, and reports which
extensions the static scanner would cover instead.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	eng, err := engine.New(engine.Options{Root: root, Config: cfg, Logger: newLogger(cmd, cfg)})
	if err != nil {
		return err
	}
	ctx, cancel := newContext()
	defer cancel()

	report, diags, err := eng.Preflight(ctx)
	if err != nil {
		return err
	}

	if OutputFormat(checkFormat) == FormatJSON {
		out, err := formatJSON(struct {
			Report      symbols.Report       `json:"report"`
			Diagnostics []rerrors.Diagnostic `json:"diagnostics,omitempty"`
		}{report, diags})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}
	printReport(cmd.OutOrStdout(), root, report, diags)
	return nil
}

func printReport(w io.Writer, root string, r symbols.Report, diags []rerrors.Diagnostic) {
	titleColor.Fprintf(w, "Symbol backend for %s\n", root)
	fmt.Fprintf(w, "  provider: %s\n", r.Provider)

	switch {
	case r.Provider != "lsp":
		okColor.Fprintln(w, "  static index")
	case r.Available:
		okColor.Fprintf(w, "  language server: %s %s (%s)\n", r.Path, strings.Join(r.Args, " "), r.Source)
	case r.Command != "":
		warnColor.Fprintf(w, "  language server: %s (unavailable)\n", r.Command)
	default:
		warnColor.Fprintln(w, "  language server: none resolved")
	}

	if len(r.Languages) > 0 {
		fmt.Fprintln(w, "  languages:")
		for _, ext := range sortedKeys(r.Languages) {
			fmt.Fprintf(w, "    .%-6s %s\n", ext, r.Languages[ext])
		}
	}
	if len(r.UnmappedExtensions) > 0 {
		fmt.Fprintf(w, "  static scan: .%s\n", strings.Join(r.UnmappedExtensions, " ."))
	}
	if len(r.Histogram) > 0 {
		fmt.Fprintln(w, "  files:")
		for i, ec := range r.Histogram {
			if i == 8 {
				dimColor.Fprintf(w, "    ... %d more extensions\n", len(r.Histogram)-i)
				break
			}
			fmt.Fprintf(w, "    .%-6s %d\n", ec.Ext, ec.Count)
		}
	}
	for _, m := range r.Messages {
		dimColor.Fprintf(w, "  - %s\n", m)
	}
	for _, d := range diags {
		warnColor.Fprintf(w, "  [%s] %s\n", d.Code, d.Message)
	}
}
