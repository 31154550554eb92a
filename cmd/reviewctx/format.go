package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"reviewctx/internal/chunks"
	"reviewctx/internal/engine"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResult renders a run for stdout.
func FormatResult(res *engine.Result, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(res)
	case FormatHuman:
		return formatResultHuman(res), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatResultHuman(res *engine.Result) string {
	var b strings.Builder
	for _, c := range res.Chunks {
		b.WriteString(chunkHeader(c))
		b.WriteByte('\n')
		b.WriteString(c.Text)
		if !strings.HasSuffix(c.Text, "\n") {
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	st := res.Stats
	fmt.Fprintf(&b, "%d chunks, %d chars from %d files", len(res.Chunks), st.TotalChars, st.Files)
	if res.Backend != "" {
		fmt.Fprintf(&b, " (symbols: %s)", res.Backend)
	}
	b.WriteByte('\n')
	if st.Truncated {
		fmt.Fprintf(&b, "truncated: %d diff hunks and %d context chunks dropped\n", st.DroppedDiff, st.DroppedContext)
	}
	for _, d := range res.Diagnostics {
		if d.Path != "" {
			fmt.Fprintf(&b, "%s [%s] %s: %s\n", d.Severity, d.Code, d.Path, d.Message)
		} else {
			fmt.Fprintf(&b, "%s [%s] %s\n", d.Severity, d.Code, d.Message)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func chunkHeader(c chunks.Chunk) string {
	loc := c.Path
	if c.StartLine > 0 {
		loc = fmt.Sprintf("%s:%d-%d", c.Path, c.StartLine, c.EndLine)
	}
	switch {
	case c.Symbol != "":
		return fmt.Sprintf("=== %s %s (%s) ===", c.Source, loc, c.Symbol)
	case c.Origin != "":
		return fmt.Sprintf("=== %s %s (%s) ===", c.Source, loc, c.Origin)
	default:
		return fmt.Sprintf("=== %s %s ===", c.Source, loc)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
