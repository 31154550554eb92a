package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifiers(t *testing.T) {
	lines := []string{
		"\ttotal := computeTotal(items, 0x1f)",
		"\tif total > limit { return nil }",
		"// computeTotal again",
	}
	got := Identifiers(lines, 0)
	assert.Equal(t, []string{"total", "computeTotal", "items", "limit", "again"}, got)
}

func TestIdentifiers_Limit(t *testing.T) {
	got := Identifiers([]string{"alpha beta gamma delta"}, 2)
	assert.Equal(t, []string{"alpha", "beta"}, got)
}

func TestIdentifiers_SkipsKeywordsAndShortNames(t *testing.T) {
	got := Identifiers([]string{"for i, v := range xs { fmt.Println(v) }"}, 0)
	assert.Equal(t, []string{"fmt", "Println"}, got)
}
