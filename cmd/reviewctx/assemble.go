package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"reviewctx/internal/config"
	"reviewctx/internal/diff"
	"reviewctx/internal/engine"
	rerrors "reviewctx/internal/errors"
)

var (
	assembleFormat   string
	assembleMaxChars int
	assembleMaxDiff  int
	assembleProvider string
	assembleNoIndex  bool
	assembleEager    bool
)

var assembleCmd = &cobra.Command{
	Use:   "assemble [diff-file|-]",
	Short: "Assemble review context for a diff",
	Long: `Assemble reads a unified diff from a file or standard input (gzip and zstd
input is decompressed) and prints the ranked, budgeted context chunks.

Examples:
  git diff main | reviewctx assemble
  reviewctx assemble change.patch --format human
  reviewctx assemble change.patch.zst --max-context-chars 0`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAssemble,
}

func init() {
	assembleCmd.Flags().StringVar(&assembleFormat, "format", "json", "Output format (json, human)")
	assembleCmd.Flags().IntVar(&assembleMaxChars, "max-context-chars", 0, "Override max_context_chars (0 disables the limit)")
	assembleCmd.Flags().IntVar(&assembleMaxDiff, "max-diff-chars", 0, "Override max_diff_chars (0 disables the limit)")
	assembleCmd.Flags().StringVar(&assembleProvider, "provider", "", "Override symbol_index_provider (regex, lsp)")
	assembleCmd.Flags().BoolVar(&assembleNoIndex, "no-symbols", false, "Skip the symbol index")
	assembleCmd.Flags().BoolVar(&assembleEager, "eager", false, "Build the symbol index before assembly")
	rootCmd.AddCommand(assembleCmd)
}

func runAssemble(cmd *cobra.Command, args []string) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	applyAssembleFlags(cmd, cfg)
	logger := newLogger(cmd, cfg)

	text, err := readDiff(cmd, args)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Options{Root: root, Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	ctx, cancel := newContext()
	defer cancel()

	res, err := eng.Run(ctx, text)
	if err != nil {
		return err
	}

	out, err := FormatResult(res, OutputFormat(assembleFormat))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func applyAssembleFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("max-context-chars") {
		cfg.MaxContextChars = assembleMaxChars
	}
	if flags.Changed("max-diff-chars") {
		cfg.MaxDiffChars = assembleMaxDiff
	}
	if flags.Changed("provider") {
		cfg.SymbolIndexProvider = assembleProvider
	}
	if assembleNoIndex {
		cfg.SymbolIndex = false
	}
	if assembleEager {
		cfg.SymbolIndexEager = true
	}
}

func readDiff(cmd *cobra.Command, args []string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", rerrors.New(rerrors.InvalidConfig, "cannot open diff", err)
		}
		defer f.Close()
		r = f
	}
	return diff.ReadInput(r)
}
