package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	rerrors "reviewctx/internal/errors"
	"reviewctx/internal/pathcfg"
)

// FileName is the configuration file name searched for in the repository
// root, without extension.
const FileName = ".reviewctx"

// EnvPrefix prefixes environment overrides, e.g. REVIEWCTX_MAX_CONTEXT_CHARS.
const EnvPrefix = "REVIEWCTX"

// LoadConfig loads .reviewctx.{yml,yaml,toml,json} from repoRoot. A missing
// file yields the defaults with environment overrides applied.
func LoadConfig(repoRoot string) (*Config, error) {
	v := newViper()
	v.SetConfigName(FileName)
	v.AddConfigPath(repoRoot)
	return load(v)
}

// LoadConfigFile loads an explicit configuration file. The file must exist.
func LoadConfigFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	return load(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("symbol_index", d.SymbolIndex)
	v.SetDefault("symbol_index_provider", d.SymbolIndexProvider)
	v.SetDefault("symbol_index_lsp_command", d.SymbolIndexLspCommand)
	v.SetDefault("symbol_index_lsp_languages", d.SymbolIndexLspLanguages)
	v.SetDefault("symbol_index_lsp_timeout_ms", d.SymbolIndexLspTimeoutMs)
	v.SetDefault("symbol_index_lsp_max_failures", d.SymbolIndexLspMaxFailures)
	v.SetDefault("symbol_index_max_files", d.SymbolIndexMaxFiles)
	v.SetDefault("symbol_index_max_bytes", d.SymbolIndexMaxBytes)
	v.SetDefault("symbol_index_max_locations", d.SymbolIndexMaxLocations)
	v.SetDefault("symbol_index_eager", d.SymbolIndexEager)
	v.SetDefault("symbol_index_static_parser", d.SymbolIndexStaticParser)
	v.SetDefault("max_context_chars", d.MaxContextChars)
	v.SetDefault("max_diff_chars", d.MaxDiffChars)
	v.SetDefault("definition_max_lines", d.DefinitionMaxLines)
	v.SetDefault("extra_context_max_files", d.ExtraContextMaxFiles)
	v.SetDefault("extra_context_max_lines", d.ExtraContextMaxLines)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("exclude_patterns", d.ExcludePatterns)
	v.SetDefault("system_prompt", "")
	v.SetDefault("review_instructions", "")
	v.SetDefault("plugins.eslint", d.Plugins.Eslint)
	v.SetDefault("plugins.semgrep", d.Plugins.Semgrep)
	v.SetDefault("plugins.timeout_ms", d.Plugins.TimeoutMs)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, rerrors.New(rerrors.InvalidConfig, "cannot read configuration", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, rerrors.New(rerrors.InvalidConfig, "cannot decode configuration", err)
	}

	if used := v.ConfigFileUsed(); used != "" {
		if _, err := os.Stat(used); err == nil {
			cfg.Source = used
			paths, err := loadPaths(used)
			if err != nil {
				return nil, rerrors.New(rerrors.InvalidConfig, "cannot decode paths table", err)
			}
			cfg.Paths = paths
		}
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, rerrors.New(rerrors.InvalidConfig, "invalid configuration", err)
	}
	return &cfg, nil
}

// loadPaths reads the paths table in declaration order with case-sensitive
// keys.
func loadPaths(file string) ([]pathcfg.Rule, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(file), ".")) {
	case "yaml", "yml":
		return yamlPaths(data)
	case "toml":
		return tomlPaths(data)
	case "json":
		return jsonPaths(data)
	default:
		return nil, nil
	}
}

func yamlPaths(data []byte) ([]pathcfg.Rule, error) {
	var doc struct {
		Paths yaml.Node `yaml:"paths"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Paths.Kind == 0 {
		return nil, nil
	}
	if doc.Paths.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: paths must be a mapping", doc.Paths.Line)
	}

	rules := make([]pathcfg.Rule, 0, len(doc.Paths.Content)/2)
	for i := 0; i+1 < len(doc.Paths.Content); i += 2 {
		key, val := doc.Paths.Content[i], doc.Paths.Content[i+1]
		var r pathcfg.Rule
		if err := val.Decode(&r); err != nil {
			return nil, fmt.Errorf("paths[%q]: %w", key.Value, err)
		}
		r.Pattern = key.Value
		rules = append(rules, r)
	}
	return rules, nil
}

func tomlPaths(data []byte) ([]pathcfg.Rule, error) {
	var doc struct {
		Paths map[string]pathcfg.Rule `toml:"paths"`
	}
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, err
	}

	rules := make([]pathcfg.Rule, 0, len(doc.Paths))
	seen := make(map[string]bool, len(doc.Paths))
	for _, key := range md.Keys() {
		if len(key) < 2 || key[0] != "paths" || seen[key[1]] {
			continue
		}
		seen[key[1]] = true
		r := doc.Paths[key[1]]
		r.Pattern = key[1]
		rules = append(rules, r)
	}
	return rules, nil
}

func jsonPaths(data []byte) ([]pathcfg.Rule, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var rules []pathcfg.Rule
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if key, _ := tok.(string); key != "paths" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}

		if err := expectDelim(dec, '{'); err != nil {
			return nil, fmt.Errorf("paths: %w", err)
		}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			pattern, _ := tok.(string)
			var r pathcfg.Rule
			if err := dec.Decode(&r); err != nil {
				return nil, fmt.Errorf("paths[%q]: %w", pattern, err)
			}
			r.Pattern = pattern
			rules = append(rules, r)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
