//go:build !cgo

package symbols

// TreeSitterAvailable reports whether the binary was built with tree-sitter.
func TreeSitterAvailable() bool { return false }

func newTreeSitterExtractor() extractor { return nil }
