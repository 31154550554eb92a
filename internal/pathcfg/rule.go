// Package pathcfg folds glob-scoped review rules into the effective
// configuration of a single repository path.
package pathcfg

// Rule is one glob-scoped override, keyed by Pattern in the configuration's
// paths table.
type Rule struct {
	Pattern            string            `yaml:"-" toml:"-" json:"-" mapstructure:"-"`
	IgnorePatterns     []string          `yaml:"ignore_patterns" toml:"ignore_patterns" json:"ignore_patterns" mapstructure:"ignore_patterns"`
	ExtraContext       []string          `yaml:"extra_context" toml:"extra_context" json:"extra_context" mapstructure:"extra_context"`
	Focus              []string          `yaml:"focus" toml:"focus" json:"focus" mapstructure:"focus"`
	SeverityOverrides  map[string]string `yaml:"severity_overrides" toml:"severity_overrides" json:"severity_overrides" mapstructure:"severity_overrides"`
	SystemPrompt       string            `yaml:"system_prompt" toml:"system_prompt" json:"system_prompt" mapstructure:"system_prompt"`
	ReviewInstructions string            `yaml:"review_instructions" toml:"review_instructions" json:"review_instructions" mapstructure:"review_instructions"`
}

// Defaults are the global values every fold starts from.
type Defaults struct {
	ExcludePatterns    []string
	SystemPrompt       string
	ReviewInstructions string
	SeverityOverrides  map[string]string
}

// Effective is the folded configuration for one path.
type Effective struct {
	Path string `json:"path"`
	// Excluded files keep their hunks but get no enrichment.
	Excluded   bool   `json:"excluded"`
	ExcludedBy string `json:"excludedBy,omitempty"`

	MatchedRules       []string          `json:"matchedRules,omitempty"`
	IgnorePatterns     []string          `json:"ignorePatterns,omitempty"`
	ExtraContext       []string          `json:"extraContext,omitempty"`
	Focus              []string          `json:"focus,omitempty"`
	SeverityOverrides  map[string]string `json:"severityOverrides,omitempty"`
	SystemPrompt       string            `json:"systemPrompt,omitempty"`
	ReviewInstructions string            `json:"reviewInstructions,omitempty"`
}
