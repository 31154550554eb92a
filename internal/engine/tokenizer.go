package engine

import (
	"regexp"
)

var identRe = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*`)

// minIdentLen drops short names such as loop variables.
const minIdentLen = 3

// keywords are reserved words of the languages the static scanner knows,
// plus literals that are never worth a lookup.
var keywords = toSet(
	// shared
	"and", "as", "async", "await", "break", "case", "catch", "class", "const", "continue",
	"def", "default", "delete", "do", "else", "enum", "export", "extends", "false", "final",
	"finally", "for", "from", "func", "function", "if", "impl", "import", "in", "instanceof",
	"interface", "let", "match", "mod", "new", "nil", "not", "null", "or", "package",
	"private", "protected", "public", "pub", "return", "self", "static", "struct", "super",
	"switch", "this", "throw", "throws", "trait", "true", "try", "type", "typeof", "use",
	"var", "void", "while", "with", "yield",
	// go
	"chan", "defer", "fallthrough", "go", "goto", "map", "range", "select", "string", "int",
	"int64", "int32", "uint", "uint64", "uint32", "byte", "rune", "bool", "error", "float64",
	"float32", "any", "make", "len", "cap", "append", "panic", "recover", "iota",
	// rust
	"crate", "dyn", "extern", "loop", "move", "mut", "ref", "unsafe", "where", "usize",
	"isize", "u8", "u16", "u32", "u64", "i32", "i64", "f32", "f64", "str", "Self", "Some",
	"None", "Ok", "Err", "Option", "Result", "Vec", "String", "Box",
	// python / ruby
	"elif", "except", "global", "lambda", "nonlocal", "pass", "raise", "True", "False",
	"None", "begin", "end", "elsif", "ensure", "module", "rescue", "then", "unless", "until",
	"puts", "print", "require", "attr_reader", "attr_accessor",
	// jvm / c-family / js
	"abstract", "boolean", "char", "double", "float", "long", "short", "signed", "unsigned",
	"sizeof", "typedef", "union", "volatile", "virtual", "template", "typename", "namespace",
	"using", "override", "sealed", "internal", "readonly", "undefined", "console", "object",
	"val", "fun", "when", "is", "data", "lateinit", "companion", "synchronized", "native",
	"transient", "implements", "package", "include", "define", "ifdef", "ifndef", "endif",
	"protocol", "extension", "guard", "inout", "init", "deinit", "let", "mixin", "required",
	"late", "dynamic", "echo", "foreach", "endforeach", "array", "isset", "unset",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Identifiers extracts lookup candidates from lines in first-occurrence
// order, skipping keywords and names shorter than three characters. At most
// limit names are returned; limit <= 0 means no cap.
func Identifiers(lines []string, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, line := range lines {
		for _, tok := range identRe.FindAllString(line, -1) {
			if len(tok) < minIdentLen {
				continue
			}
			if _, ok := keywords[tok]; ok {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}
