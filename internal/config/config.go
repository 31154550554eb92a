// Package config loads reviewctx configuration from the repository root.
package config

import (
	"strconv"
	"strings"

	"reviewctx/internal/pathcfg"
)

// Provider names accepted by symbol_index_provider.
const (
	ProviderRegex = "regex"
	ProviderLSP   = "lsp"
)

// Static parser names accepted by symbol_index_static_parser.
const (
	ParserRegex      = "regex"
	ParserTreeSitter = "treesitter"
)

// Config is the complete reviewctx configuration. Keys are snake_case in
// every file format and map to REVIEWCTX_<KEY> environment variables.
type Config struct {
	SymbolIndex               bool              `json:"symbol_index" toml:"symbol_index" yaml:"symbol_index" mapstructure:"symbol_index"`
	SymbolIndexProvider       string            `json:"symbol_index_provider" toml:"symbol_index_provider" yaml:"symbol_index_provider" mapstructure:"symbol_index_provider"`
	SymbolIndexLspCommand     string            `json:"symbol_index_lsp_command" toml:"symbol_index_lsp_command" yaml:"symbol_index_lsp_command" mapstructure:"symbol_index_lsp_command"`
	SymbolIndexLspLanguages   map[string]string `json:"symbol_index_lsp_languages" toml:"symbol_index_lsp_languages" yaml:"symbol_index_lsp_languages" mapstructure:"symbol_index_lsp_languages"`
	SymbolIndexLspTimeoutMs   int               `json:"symbol_index_lsp_timeout_ms" toml:"symbol_index_lsp_timeout_ms" yaml:"symbol_index_lsp_timeout_ms" mapstructure:"symbol_index_lsp_timeout_ms"`
	SymbolIndexLspMaxFailures int               `json:"symbol_index_lsp_max_failures" toml:"symbol_index_lsp_max_failures" yaml:"symbol_index_lsp_max_failures" mapstructure:"symbol_index_lsp_max_failures"`
	SymbolIndexMaxFiles       int               `json:"symbol_index_max_files" toml:"symbol_index_max_files" yaml:"symbol_index_max_files" mapstructure:"symbol_index_max_files"`
	SymbolIndexMaxBytes       int               `json:"symbol_index_max_bytes" toml:"symbol_index_max_bytes" yaml:"symbol_index_max_bytes" mapstructure:"symbol_index_max_bytes"`
	SymbolIndexMaxLocations   int               `json:"symbol_index_max_locations" toml:"symbol_index_max_locations" yaml:"symbol_index_max_locations" mapstructure:"symbol_index_max_locations"`
	SymbolIndexEager          bool              `json:"symbol_index_eager" toml:"symbol_index_eager" yaml:"symbol_index_eager" mapstructure:"symbol_index_eager"`
	SymbolIndexStaticParser   string            `json:"symbol_index_static_parser" toml:"symbol_index_static_parser" yaml:"symbol_index_static_parser" mapstructure:"symbol_index_static_parser"`

	MaxContextChars      int `json:"max_context_chars" toml:"max_context_chars" yaml:"max_context_chars" mapstructure:"max_context_chars"`
	MaxDiffChars         int `json:"max_diff_chars" toml:"max_diff_chars" yaml:"max_diff_chars" mapstructure:"max_diff_chars"`
	DefinitionMaxLines   int `json:"definition_max_lines" toml:"definition_max_lines" yaml:"definition_max_lines" mapstructure:"definition_max_lines"`
	ExtraContextMaxFiles int `json:"extra_context_max_files" toml:"extra_context_max_files" yaml:"extra_context_max_files" mapstructure:"extra_context_max_files"`
	ExtraContextMaxLines int `json:"extra_context_max_lines" toml:"extra_context_max_lines" yaml:"extra_context_max_lines" mapstructure:"extra_context_max_lines"`
	Concurrency          int `json:"concurrency" toml:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	ExcludePatterns    []string          `json:"exclude_patterns" toml:"exclude_patterns" yaml:"exclude_patterns" mapstructure:"exclude_patterns"`
	SystemPrompt       string            `json:"system_prompt,omitempty" toml:"system_prompt,omitempty" yaml:"system_prompt,omitempty" mapstructure:"system_prompt"`
	ReviewInstructions string            `json:"review_instructions,omitempty" toml:"review_instructions,omitempty" yaml:"review_instructions,omitempty" mapstructure:"review_instructions"`
	SeverityOverrides  map[string]string `json:"severity_overrides,omitempty" toml:"severity_overrides,omitempty" yaml:"severity_overrides,omitempty" mapstructure:"severity_overrides"`

	Plugins PluginsConfig `json:"plugins" toml:"plugins" yaml:"plugins" mapstructure:"plugins"`
	Logging LoggingConfig `json:"logging" toml:"logging" yaml:"logging" mapstructure:"logging"`

	// Paths keeps declaration order, which viper's maps lose.
	Paths []pathcfg.Rule `json:"-" toml:"-" yaml:"-" mapstructure:"-"`

	// Source is the file the configuration was read from, empty for defaults.
	Source string `json:"-" toml:"-" yaml:"-" mapstructure:"-"`
}

// PluginsConfig toggles the builtin pre-analyzers.
type PluginsConfig struct {
	Eslint    bool `json:"eslint" toml:"eslint" yaml:"eslint" mapstructure:"eslint"`
	Semgrep   bool `json:"semgrep" toml:"semgrep" yaml:"semgrep" mapstructure:"semgrep"`
	TimeoutMs int  `json:"timeout_ms" toml:"timeout_ms" yaml:"timeout_ms" mapstructure:"timeout_ms"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" toml:"format" yaml:"format" mapstructure:"format"`
	Level  string `json:"level" toml:"level" yaml:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		SymbolIndex:               true,
		SymbolIndexProvider:       ProviderRegex,
		SymbolIndexLspLanguages:   map[string]string{},
		SymbolIndexLspTimeoutMs:   10000,
		SymbolIndexLspMaxFailures: 3,
		SymbolIndexMaxFiles:       500,
		SymbolIndexMaxBytes:       200000,
		SymbolIndexMaxLocations:   5,
		SymbolIndexStaticParser:   ParserRegex,
		MaxContextChars:           20000,
		MaxDiffChars:              40000,
		DefinitionMaxLines:        40,
		ExtraContextMaxFiles:      10,
		ExtraContextMaxLines:      200,
		Concurrency:               4,
		ExcludePatterns:           []string{},
		Plugins: PluginsConfig{
			TimeoutMs: 30000,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// Normalize replaces unusable values with defaults, the way a hand-edited
// file is most likely meant. Budgets are left alone: zero disables them.
func (c *Config) Normalize() {
	d := DefaultConfig()

	if c.SymbolIndexMaxFiles <= 0 {
		c.SymbolIndexMaxFiles = d.SymbolIndexMaxFiles
	}
	if c.SymbolIndexMaxBytes <= 0 {
		c.SymbolIndexMaxBytes = d.SymbolIndexMaxBytes
	}
	if c.SymbolIndexMaxLocations <= 0 {
		c.SymbolIndexMaxLocations = d.SymbolIndexMaxLocations
	}
	if c.SymbolIndexLspTimeoutMs <= 0 {
		c.SymbolIndexLspTimeoutMs = d.SymbolIndexLspTimeoutMs
	}
	if c.SymbolIndexLspMaxFailures <= 0 {
		c.SymbolIndexLspMaxFailures = d.SymbolIndexLspMaxFailures
	}
	if c.DefinitionMaxLines <= 0 {
		c.DefinitionMaxLines = d.DefinitionMaxLines
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Plugins.TimeoutMs <= 0 {
		c.Plugins.TimeoutMs = d.Plugins.TimeoutMs
	}

	switch p := strings.ToLower(strings.TrimSpace(c.SymbolIndexProvider)); p {
	case ProviderRegex, ProviderLSP:
		c.SymbolIndexProvider = p
	default:
		c.SymbolIndexProvider = ProviderRegex
	}
	switch p := strings.ToLower(strings.TrimSpace(c.SymbolIndexStaticParser)); p {
	case ParserRegex, ParserTreeSitter:
		c.SymbolIndexStaticParser = p
	default:
		c.SymbolIndexStaticParser = ParserRegex
	}
	c.SymbolIndexLspCommand = strings.TrimSpace(c.SymbolIndexLspCommand)

	if len(c.SymbolIndexLspLanguages) > 0 {
		langs := make(map[string]string, len(c.SymbolIndexLspLanguages))
		for ext, id := range c.SymbolIndexLspLanguages {
			ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
			if ext != "" && strings.TrimSpace(id) != "" {
				langs[ext] = strings.TrimSpace(id)
			}
		}
		c.SymbolIndexLspLanguages = langs
	}
	if c.SymbolIndexLspLanguages == nil {
		c.SymbolIndexLspLanguages = map[string]string{}
	}

	c.SystemPrompt = strings.TrimSpace(c.SystemPrompt)
	c.ReviewInstructions = strings.TrimSpace(c.ReviewInstructions)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.MaxContextChars < 0 {
		return &ConfigError{Field: "max_context_chars", Message: "must be >= 0 (0 disables the limit)"}
	}
	if c.MaxDiffChars < 0 {
		return &ConfigError{Field: "max_diff_chars", Message: "must be >= 0 (0 disables the limit)"}
	}
	if c.ExtraContextMaxFiles < 0 {
		return &ConfigError{Field: "extra_context_max_files", Message: "must be >= 0"}
	}
	if c.ExtraContextMaxLines < 0 {
		return &ConfigError{Field: "extra_context_max_lines", Message: "must be >= 0"}
	}
	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	for i, r := range c.Paths {
		if strings.TrimSpace(r.Pattern) == "" {
			return &ConfigError{Field: "paths", Message: "rule " + strconv.Itoa(i) + " has an empty pattern"}
		}
	}
	return nil
}

// PathDefaults returns the global values path rules fold over.
func (c *Config) PathDefaults() pathcfg.Defaults {
	return pathcfg.Defaults{
		ExcludePatterns:    c.ExcludePatterns,
		SystemPrompt:       c.SystemPrompt,
		ReviewInstructions: c.ReviewInstructions,
		SeverityOverrides:  c.SeverityOverrides,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
