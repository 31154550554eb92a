package pathcfg

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Normalize turns a path into the slash-separated, repository-relative form
// patterns are matched against.
func Normalize(p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return strings.TrimPrefix(p, "/")
}

// HasMeta reports whether pattern uses any glob syntax.
func HasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, `*?[{\`)
}

// ValidPattern reports whether pattern can be matched.
func ValidPattern(pattern string) bool {
	if strings.TrimSpace(pattern) == "" {
		return false
	}
	return doublestar.ValidatePattern(Normalize(pattern))
}

// Match reports whether path matches pattern. Glob patterns use doublestar
// semantics anchored at the repository root. A pattern without glob syntax
// matches the path itself or anything below it.
func Match(pattern, path string) bool {
	pattern = Normalize(pattern)
	path = Normalize(path)
	if pattern == "" || path == "" {
		return false
	}
	if !HasMeta(pattern) {
		dir := strings.TrimSuffix(pattern, "/")
		return path == dir || strings.HasPrefix(path, dir+"/")
	}
	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}
