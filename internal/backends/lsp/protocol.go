package lsp

import (
	"encoding/json"
	"net/url"
	"path/filepath"
	"strings"

	"reviewctx/internal/symbols"
)

type position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type lspRange struct {
	Start position `json:"start"`
	End   position `json:"end"`
}

type location struct {
	URI   string    `json:"uri"`
	Range *lspRange `json:"range,omitempty"`
}

// documentSymbol covers both DocumentSymbol (hierarchical) and
// SymbolInformation (flat) result shapes.
type documentSymbol struct {
	Name           string           `json:"name"`
	Kind           int              `json:"kind"`
	Range          *lspRange        `json:"range,omitempty"`
	SelectionRange *lspRange        `json:"selectionRange,omitempty"`
	Location       *location        `json:"location,omitempty"`
	Children       []documentSymbol `json:"children,omitempty"`
}

// symbolKind maps LSP SymbolKind numbers.
func symbolKind(k int) symbols.Kind {
	switch k {
	case 5:
		return symbols.KindClass
	case 6, 9:
		return symbols.KindMethod
	case 12:
		return symbols.KindFunction
	case 10, 11, 23, 26:
		return symbols.KindType
	case 7, 8, 13, 14:
		return symbols.KindVariable
	}
	return symbols.KindUnknown
}

// parseDocumentSymbols flattens a textDocument/documentSymbol result. Any
// shape it does not understand yields no locations.
func parseDocumentSymbols(raw json.RawMessage, path string) []symbols.Location {
	var syms []documentSymbol
	if len(raw) == 0 || json.Unmarshal(raw, &syms) != nil {
		return nil
	}
	var out []symbols.Location
	var walk func([]documentSymbol)
	walk = func(list []documentSymbol) {
		for _, s := range list {
			if loc, ok := toLocation(s, path); ok {
				out = append(out, loc)
			}
			walk(s.Children)
		}
	}
	walk(syms)
	return out
}

func toLocation(s documentSymbol, path string) (symbols.Location, bool) {
	if len(s.Name) < 2 {
		return symbols.Location{}, false
	}
	decl, span := s.SelectionRange, s.Range
	if decl == nil {
		decl = s.Range
	}
	if decl == nil && s.Location != nil {
		decl, span = s.Location.Range, s.Location.Range
	}
	if decl == nil {
		return symbols.Location{}, false
	}
	loc := symbols.Location{
		Name:   s.Name,
		Path:   path,
		Line:   decl.Start.Line + 1,
		Column: decl.Start.Character + 1,
		Kind:   symbolKind(s.Kind),
	}
	if span != nil && span.End.Line >= decl.Start.Line {
		loc.EndLine = span.End.Line + 1
	}
	return loc, true
}

// FileURI converts an absolute filesystem path into a file:// URI with
// percent-encoded segments.
func FileURI(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

// relativePath maps a file URI back to a slash path under root. ok is false
// for URIs outside root or not using the file scheme.
func relativePath(root, uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	rel, err := filepath.Rel(root, filepath.FromSlash(u.Path))
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}
