package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"reviewctx/internal/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage reviewctx configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .reviewctx.toml",
	Long:  "Writes .reviewctx.toml with every option at its default value to the repository root.",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	existing := filepath.Join(root, config.FileName+".toml")
	if _, statErr := os.Stat(existing); statErr == nil && !configInitForce {
		// Already initialized is success so the command is safe in CI.
		fmt.Fprintln(out, "reviewctx already configured.")
		fmt.Fprintf(out, "Configuration at: %s\n", existing)
		fmt.Fprintln(out, "\nRun 'reviewctx config init --force' to overwrite it.")
		return nil
	}

	path, err := config.WriteTemplate(root, configInitForce)
	if err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}
