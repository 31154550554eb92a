package repo

import (
	"path"
	"sort"
	"strings"
)

// ExtCount is one bucket of an extension histogram.
type ExtCount struct {
	Ext   string `json:"ext"`
	Count int    `json:"count"`
}

// Ext returns the lowercased extension of p without its dot, or "".
func Ext(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	i := strings.LastIndexByte(base, '.')
	if i <= 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// Histogram counts files per extension, most common first, ties by name.
// Files without an extension are not counted.
func Histogram(files []string) []ExtCount {
	counts := make(map[string]int)
	for _, f := range files {
		if ext := Ext(f); ext != "" {
			counts[ext]++
		}
	}
	out := make([]ExtCount, 0, len(counts))
	for ext, n := range counts {
		out = append(out, ExtCount{Ext: ext, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Ext < out[j].Ext
	})
	return out
}
