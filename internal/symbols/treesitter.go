//go:build cgo

package symbols

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TreeSitterAvailable reports whether the binary was built with tree-sitter.
func TreeSitterAvailable() bool { return true }

type treeSitterExtractor struct{}

func newTreeSitterExtractor() extractor { return treeSitterExtractor{} }

func treeSitterLanguage(ext string) *sitter.Language {
	switch ext {
	case "go":
		return golang.GetLanguage()
	case "js", "jsx", "mjs", "cjs":
		return javascript.GetLanguage()
	case "ts":
		return typescript.GetLanguage()
	case "tsx":
		return tsx.GetLanguage()
	case "py":
		return python.GetLanguage()
	case "rs":
		return rust.GetLanguage()
	case "java":
		return java.GetLanguage()
	case "kt":
		return kotlin.GetLanguage()
	}
	return nil
}

func (treeSitterExtractor) Supports(ext string) bool {
	return treeSitterLanguage(ext) != nil
}

// Extract parses src and returns declarations in source order. A parser is
// created per call; sitter.Parser is not safe for concurrent use.
func (treeSitterExtractor) Extract(ctx context.Context, path, ext string, src []byte) ([]Location, error) {
	lang := treeSitterLanguage(ext)
	if lang == nil {
		return nil, nil
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	var out []Location
	var walk func(n *sitter.Node, inType bool)
	walk = func(n *sitter.Node, inType bool) {
		if n == nil {
			return
		}
		kind, ok := declKinds[n.Type()]
		childInType := inType
		if ok {
			if kind == KindFunction && inType {
				kind = KindMethod
			}
			if name := declName(n, src); len(name) >= 2 {
				out = append(out, Location{
					Name:    name,
					Path:    path,
					Line:    int(n.StartPoint().Row) + 1,
					EndLine: int(n.EndPoint().Row) + 1,
					Column:  int(n.StartPoint().Column) + 1,
					Kind:    kind,
				})
			}
			if kind == KindClass || kind == KindType {
				childInType = true
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i), childInType)
		}
	}
	walk(tree.RootNode(), false)
	return out, nil
}

var declKinds = map[string]Kind{
	// go
	"function_declaration": KindFunction,
	"method_declaration":   KindMethod,
	"type_spec":            KindType,
	// javascript / typescript
	"generator_function_declaration": KindFunction,
	"class_declaration":              KindClass,
	"interface_declaration":          KindType,
	"type_alias_declaration":         KindType,
	"enum_declaration":               KindType,
	"method_definition":              KindMethod,
	// python
	"function_definition": KindFunction,
	"class_definition":    KindClass,
	// rust
	"function_item": KindFunction,
	"struct_item":   KindType,
	"enum_item":     KindType,
	"trait_item":    KindType,
	"type_item":     KindType,
	// java / kotlin
	"constructor_declaration": KindMethod,
	"record_declaration":      KindClass,
	"object_declaration":      KindClass,
}

func declName(n *sitter.Node, src []byte) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}
	// kotlin grammar has no name fields
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "simple_identifier", "type_identifier", "identifier":
			return c.Content(src)
		}
	}
	return ""
}
