package symbols

import (
	"regexp"
	"strings"
)

type declPattern struct {
	re   *regexp.Regexp
	kind Kind
}

func decl(kind Kind, expr string) declPattern {
	return declPattern{re: regexp.MustCompile(expr), kind: kind}
}

const ident = `([A-Za-z_][A-Za-z0-9_]*)`

var (
	rustPatterns = []declPattern{
		decl(KindFunction, `^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?(?:unsafe\s+)?fn\s+`+ident),
		decl(KindType, `^\s*(?:pub(?:\([^)]*\))?\s+)?(?:struct|enum|trait|type|union)\s+`+ident),
		decl(KindType, `^\s*impl(?:<[^>]*>)?\s+`+ident),
	}
	goPatterns = []declPattern{
		decl(KindFunction, `^\s*func\s+(?:\([^)]*\)\s*)?`+ident),
		decl(KindType, `^\s*type\s+`+ident+`\s+`),
	}
	pythonPatterns = []declPattern{
		decl(KindFunction, `^\s*(?:async\s+)?def\s+`+ident),
		decl(KindClass, `^\s*class\s+`+ident),
	}
	jsPatterns = []declPattern{
		decl(KindFunction, `^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\*?\s+`+ident),
		decl(KindClass, `^\s*(?:export\s+)?(?:default\s+)?class\s+`+ident),
		decl(KindFunction, `^\s*(?:export\s+)?const\s+`+ident+`\s*=\s*(?:async\s*)?\(`),
	}
	tsPatterns = append(append([]declPattern{}, jsPatterns...),
		decl(KindType, `^\s*(?:export\s+)?interface\s+`+ident),
		decl(KindType, `^\s*(?:export\s+)?type\s+`+ident+`\s*(?:<[^>]*>)?\s*=`),
		decl(KindType, `^\s*(?:export\s+)?(?:const\s+)?enum\s+`+ident),
	)
	javaPatterns = []declPattern{
		decl(KindClass, `^\s*(?:(?:public|protected|private|abstract|final|static)\s+)*(?:class|interface|enum|record)\s+`+ident),
		decl(KindMethod, `^\s*(?:(?:public|protected|private|static|final|abstract|synchronized)\s+)+[\w<>\[\], ]+\s+`+ident+`\s*\(`),
	}
	kotlinPatterns = []declPattern{
		decl(KindClass, `^\s*(?:(?:data|sealed|open|abstract|enum|private|internal|public)\s+)*(?:class|interface|object)\s+`+ident),
		decl(KindFunction, `^\s*(?:(?:private|internal|public|override|suspend|inline)\s+)*fun\s+(?:<[^>]*>\s*)?(?:[\w.]+\.)?`+ident),
	}
	csharpPatterns = []declPattern{
		decl(KindClass, `^\s*(?:(?:public|protected|private|internal|static|abstract|sealed|partial)\s+)*(?:class|interface|enum|struct|record)\s+`+ident),
	}
	cPatterns = []declPattern{
		decl(KindType, `^\s*(?:class|struct)\s+`+ident),
		decl(KindFunction, `^[A-Za-z_][\w\s\*&:<>]*?\b`+ident+`\s*\([^;]*$`),
	}
	rubyPatterns = []declPattern{
		decl(KindMethod, `^\s*def\s+(?:self\.)?([A-Za-z_][A-Za-z0-9_!?=]*)`),
		decl(KindClass, `^\s*(?:class|module)\s+`+ident),
	}
	phpPatterns = []declPattern{
		decl(KindFunction, `^\s*(?:(?:public|protected|private|static|final|abstract)\s+)*function\s+`+ident),
		decl(KindClass, `^\s*(?:(?:abstract|final)\s+)?(?:class|interface|trait|enum)\s+`+ident),
	}
	swiftPatterns = []declPattern{
		decl(KindFunction, `^\s*(?:(?:public|private|internal|fileprivate|open|static|final|override)\s+)*func\s+`+ident),
		decl(KindType, `^\s*(?:(?:public|private|internal|fileprivate|open|final)\s+)*(?:class|struct|enum|protocol|extension)\s+`+ident),
	}
	scalaPatterns = []declPattern{
		decl(KindFunction, `^\s*(?:(?:private|protected|override|final|implicit)\s+)*def\s+`+ident),
		decl(KindClass, `^\s*(?:(?:case|abstract|sealed|final)\s+)*(?:class|object|trait)\s+`+ident),
	}
	dartPatterns = []declPattern{
		decl(KindClass, `^\s*(?:abstract\s+)?(?:class|mixin|enum|extension)\s+`+ident),
	}
)

var patternsByExt = map[string][]declPattern{
	"rs":    rustPatterns,
	"go":    goPatterns,
	"py":    pythonPatterns,
	"js":    jsPatterns,
	"jsx":   jsPatterns,
	"mjs":   jsPatterns,
	"cjs":   jsPatterns,
	"ts":    tsPatterns,
	"tsx":   tsPatterns,
	"java":  javaPatterns,
	"kt":    kotlinPatterns,
	"cs":    csharpPatterns,
	"c":     cPatterns,
	"h":     cPatterns,
	"cc":    cPatterns,
	"cpp":   cPatterns,
	"hpp":   cPatterns,
	"rb":    rubyPatterns,
	"php":   phpPatterns,
	"swift": swiftPatterns,
	"scala": scalaPatterns,
	"dart":  dartPatterns,
}

// HasPatterns reports whether the static scanner understands ext
// (lowercase, no dot).
func HasPatterns(ext string) bool {
	_, ok := patternsByExt[ext]
	return ok
}

// ScanSource extracts declarations from src line by line.
func ScanSource(path, ext string, src string) []Location {
	pats := patternsByExt[ext]
	if len(pats) == 0 {
		return nil
	}
	var out []Location
	for i, line := range strings.Split(src, "\n") {
		line = strings.TrimSuffix(line, "\r")
		for _, p := range pats {
			m := p.re.FindStringSubmatchIndex(line)
			if m == nil || m[2] < 0 {
				continue
			}
			name := line[m[2]:m[3]]
			if len(name) < 2 || isControlWord(name) {
				continue
			}
			out = append(out, Location{
				Name:   name,
				Path:   path,
				Line:   i + 1,
				Column: m[2] + 1,
				Kind:   p.kind,
			})
			break
		}
	}
	return out
}

// The C function rule matches statements such as "if (x) {" on their own line.
func isControlWord(name string) bool {
	switch name {
	case "if", "for", "while", "switch", "return", "sizeof", "catch", "else":
		return true
	}
	return false
}
