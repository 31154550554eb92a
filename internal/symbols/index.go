// Package symbols maps identifiers to the places they are declared.
//
// An Index is filled once per run by a Backend (the static pattern scanner or
// a language server) and is read-only afterwards. Service selects the backend
// and handles the one-way switch to the static scanner when the language
// server cannot serve.
package symbols

import (
	"context"
	"path"
	"strconv"
)

// Kind classifies a declaration.
type Kind string

const (
	KindFunction Kind = "function"
	KindClass    Kind = "class"
	KindMethod   Kind = "method"
	KindType     Kind = "type"
	KindVariable Kind = "variable"
	KindUnknown  Kind = "unknown"
)

// Location is one declaration site. Line and EndLine are 1-based; EndLine is
// 0 when the backend does not know where the declaration ends.
type Location struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Line    int    `json:"line"`
	EndLine int    `json:"endLine,omitempty"`
	Column  int    `json:"column,omitempty"`
	Kind    Kind   `json:"kind"`
}

// Backend produces symbol locations for a repository.
type Backend interface {
	Name() string
	// Build indexes files (repository-relative slash paths) under root.
	Build(ctx context.Context, root string, files []string) error
	// Lookup returns the locations for name. hint is the path of the file
	// the lookup originates from and only affects ordering.
	Lookup(ctx context.Context, name, hint string) ([]Location, error)
	// Available reports whether the backend can still answer lookups.
	Available() bool
	Close() error
}

// Index stores locations per name in insertion order.
type Index struct {
	maxLocations int
	byName       map[string][]Location
	seen         map[string]struct{}
	files        map[string]struct{}
	symbols      int
}

// NewIndex creates an index keeping at most maxLocations per name (0 keeps all).
func NewIndex(maxLocations int) *Index {
	return &Index{
		maxLocations: maxLocations,
		byName:       make(map[string][]Location),
		seen:         make(map[string]struct{}),
		files:        make(map[string]struct{}),
	}
}

// Add records loc. It returns false when the location is a duplicate or the
// name already holds maxLocations entries.
func (ix *Index) Add(loc Location) bool {
	key := loc.Name + "\x00" + loc.Path + "\x00" + strconv.Itoa(loc.Line)
	if _, dup := ix.seen[key]; dup {
		return false
	}
	locs := ix.byName[loc.Name]
	if ix.maxLocations > 0 && len(locs) >= ix.maxLocations {
		return false
	}
	ix.seen[key] = struct{}{}
	ix.byName[loc.Name] = append(locs, loc)
	ix.files[loc.Path] = struct{}{}
	ix.symbols++
	return true
}

// Lookup returns a copy of the locations stored for name.
func (ix *Index) Lookup(name string) []Location {
	locs := ix.byName[name]
	if len(locs) == 0 {
		return nil
	}
	out := make([]Location, len(locs))
	copy(out, locs)
	return out
}

// Has reports whether name has at least one location.
func (ix *Index) Has(name string) bool {
	return len(ix.byName[name]) > 0
}

// FilesIndexed is the number of distinct files that contributed a location.
func (ix *Index) FilesIndexed() int { return len(ix.files) }

// Len is the number of stored locations.
func (ix *Index) Len() int { return ix.symbols }

// Names is the number of distinct names.
func (ix *Index) Names() int { return len(ix.byName) }

// PreferNear moves locations in the hint's directory to the front, keeping
// relative order otherwise.
func PreferNear(locs []Location, hint string) []Location {
	if hint == "" || len(locs) < 2 {
		return locs
	}
	dir := path.Dir(hint)
	out := make([]Location, 0, len(locs))
	for _, l := range locs {
		if path.Dir(l.Path) == dir {
			out = append(out, l)
		}
	}
	for _, l := range locs {
		if path.Dir(l.Path) != dir {
			out = append(out, l)
		}
	}
	return out
}
