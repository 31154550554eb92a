package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "reviewctx/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.SymbolIndex)
	assert.Equal(t, ProviderRegex, cfg.SymbolIndexProvider)
	assert.Equal(t, 500, cfg.SymbolIndexMaxFiles)
	assert.Equal(t, 200000, cfg.SymbolIndexMaxBytes)
	assert.Equal(t, 5, cfg.SymbolIndexMaxLocations)
	assert.Equal(t, 10000, cfg.SymbolIndexLspTimeoutMs)
	assert.Equal(t, 3, cfg.SymbolIndexLspMaxFailures)
	assert.Equal(t, 20000, cfg.MaxContextChars)
	assert.Equal(t, 40000, cfg.MaxDiffChars)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Missing(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().MaxContextChars, cfg.MaxContextChars)
	assert.Empty(t, cfg.Source)
	assert.Empty(t, cfg.Paths)
}

func TestLoadConfig_YAMLKeepsPathOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".reviewctx.yml", `
symbol_index_provider: LSP
symbol_index_lsp_languages:
  .RS: rust
max_context_chars: 0
exclude_patterns: ["**/*.lock"]
paths:
  "src/**":
    extra_context: ["src/types.rs"]
    system_prompt: outer
  "Src/API/**":
    severity_overrides:
      style: low
  "docs/**":
    ignore_patterns: ["docs/gen/**"]
    focus: [wording]
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".reviewctx.yml"), cfg.Source)
	assert.Equal(t, ProviderLSP, cfg.SymbolIndexProvider)
	assert.Equal(t, map[string]string{"rs": "rust"}, cfg.SymbolIndexLspLanguages)
	assert.Equal(t, 0, cfg.MaxContextChars, "zero budget must survive normalization")
	assert.Equal(t, []string{"**/*.lock"}, cfg.ExcludePatterns)

	require.Len(t, cfg.Paths, 3)
	assert.Equal(t, "src/**", cfg.Paths[0].Pattern)
	assert.Equal(t, "Src/API/**", cfg.Paths[1].Pattern, "pattern case is preserved")
	assert.Equal(t, "docs/**", cfg.Paths[2].Pattern)
	assert.Equal(t, []string{"src/types.rs"}, cfg.Paths[0].ExtraContext)
	assert.Equal(t, "outer", cfg.Paths[0].SystemPrompt)
	assert.Equal(t, map[string]string{"style": "low"}, cfg.Paths[1].SeverityOverrides)
	assert.Equal(t, []string{"wording"}, cfg.Paths[2].Focus)
}

func TestLoadConfig_TOMLKeepsPathOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".reviewctx.toml", `
max_diff_chars = 1234

[plugins]
eslint = true

[paths."z/**"]
system_prompt = "z"

[paths."a/**"]
ignore_patterns = ["a/tmp/**"]
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.MaxDiffChars)
	assert.True(t, cfg.Plugins.Eslint)
	require.Len(t, cfg.Paths, 2)
	assert.Equal(t, "z/**", cfg.Paths[0].Pattern)
	assert.Equal(t, "a/**", cfg.Paths[1].Pattern)
	assert.Equal(t, []string{"a/tmp/**"}, cfg.Paths[1].IgnorePatterns)
}

func TestLoadConfigFile_JSONKeepsPathOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "review.json", `{
  "symbol_index": false,
  "logging": {"level": "debug"},
  "paths": {
    "lib/**": {"extra_context": ["lib/mod.rs"]},
    "bin/**": {"review_instructions": "check flags"}
  },
  "max_context_chars": 99
}`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.False(t, cfg.SymbolIndex)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 99, cfg.MaxContextChars)
	require.Len(t, cfg.Paths, 2)
	assert.Equal(t, "lib/**", cfg.Paths[0].Pattern)
	assert.Equal(t, "bin/**", cfg.Paths[1].Pattern)
	assert.Equal(t, "check flags", cfg.Paths[1].ReviewInstructions)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("REVIEWCTX_MAX_CONTEXT_CHARS", "777")
	t.Setenv("REVIEWCTX_SYMBOL_INDEX_PROVIDER", "lsp")
	t.Setenv("REVIEWCTX_PLUGINS_SEMGREP", "true")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 777, cfg.MaxContextChars)
	assert.Equal(t, ProviderLSP, cfg.SymbolIndexProvider)
	assert.True(t, cfg.Plugins.Semgrep)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.True(t, rerrors.HasCode(err, rerrors.InvalidConfig))

	dir := t.TempDir()
	path := writeFile(t, dir, "neg.yml", "max_diff_chars: -1\n")
	_, err = LoadConfigFile(path)
	require.Error(t, err)
	var cerr *ConfigError
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, "max_diff_chars", cerr.Field)
}

func TestNormalize(t *testing.T) {
	cfg := &Config{
		SymbolIndexProvider:     "  tree-sitter ",
		SymbolIndexStaticParser: "TreeSitter",
		SymbolIndexLspCommand:   "   ",
		SymbolIndexMaxFiles:     -3,
		MaxContextChars:         0,
	}
	cfg.Normalize()

	assert.Equal(t, ProviderRegex, cfg.SymbolIndexProvider)
	assert.Equal(t, ParserTreeSitter, cfg.SymbolIndexStaticParser)
	assert.Equal(t, "", cfg.SymbolIndexLspCommand)
	assert.Equal(t, 500, cfg.SymbolIndexMaxFiles)
	assert.Equal(t, 0, cfg.MaxContextChars)
	assert.NotNil(t, cfg.SymbolIndexLspLanguages)
}

func TestTemplate_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteTemplate(dir, false)
	require.NoError(t, err)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, DefaultConfig().MaxDiffChars, cfg.MaxDiffChars)
	assert.Empty(t, cfg.Paths)

	_, err = WriteTemplate(dir, false)
	assert.Error(t, err, "existing file must not be overwritten")
	_, err = WriteTemplate(dir, true)
	assert.NoError(t, err)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
