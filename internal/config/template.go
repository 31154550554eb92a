package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const templateHeader = `# reviewctx configuration.
# Every key can be overridden with REVIEWCTX_<KEY>, e.g. REVIEWCTX_MAX_CONTEXT_CHARS=0.
# Budgets set to 0 are unbounded.
`

const templatePaths = `
# Path rules are applied in declaration order. Scalars are overridden by later
# matches; ignore_patterns, extra_context and focus accumulate.
#
# [paths."src/api/**"]
# extra_context = ["src/api/types.go"]
# ignore_patterns = ["src/api/gen/**"]
# severity_overrides = { style = "low" }
# review_instructions = "Check handler error paths."
`

// Template renders c as a commented TOML configuration file.
func Template(c *Config) ([]byte, error) {
	body, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(templateHeader)
	buf.WriteByte('\n')
	buf.Write(body)
	buf.WriteString(templatePaths)
	return buf.Bytes(), nil
}

// WriteTemplate writes the default configuration to <repoRoot>/.reviewctx.toml.
// An existing file is left untouched unless force is set.
func WriteTemplate(repoRoot string, force bool) (string, error) {
	path := filepath.Join(repoRoot, FileName+".toml")
	if !force {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%s already exists", path)
		}
	}
	data, err := Template(DefaultConfig())
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
