// Package diff parses unified diffs into per-file hunks with exact 1-based
// line numbers, and prints them back.
package diff

import (
	"fmt"
	"strings"
)

// LineKind classifies a hunk line.
type LineKind int

const (
	Context LineKind = iota
	Added
	Removed
)

func (k LineKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "context"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k LineKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *LineKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "added":
		*k = Added
	case "removed":
		*k = Removed
	case "context":
		*k = Context
	default:
		return fmt.Errorf("unknown line kind %q", b)
	}
	return nil
}

// Line is one body line of a hunk. Added lines carry only NewLine, removed
// lines only OldLine, context lines both. Zero means absent.
type Line struct {
	Kind    LineKind `json:"kind"`
	Text    string   `json:"text"`
	OldLine int      `json:"oldLine,omitempty"`
	NewLine int      `json:"newLine,omitempty"`
	// NoNewline is set when the line was followed by "\ No newline at end of file".
	NoNewline bool `json:"noNewline,omitempty"`
}

// Hunk is a contiguous block of changes. The counts always equal the number of
// parsed lines on each side.
type Hunk struct {
	OldStart int    `json:"oldStart"`
	OldCount int    `json:"oldCount"`
	NewStart int    `json:"newStart"`
	NewCount int    `json:"newCount"`
	Section  string `json:"section,omitempty"`
	Lines    []Line `json:"lines"`
}

// Header renders the hunk's "@@" line.
func (h Hunk) Header() string {
	s := fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
	if h.Section != "" {
		s += " " + h.Section
	}
	return s
}

// Text renders the hunk header and body as unified-diff text.
func (h Hunk) Text() string {
	var b strings.Builder
	b.WriteString(h.Header())
	b.WriteByte('\n')
	for _, l := range h.Lines {
		switch l.Kind {
		case Added:
			b.WriteByte('+')
		case Removed:
			b.WriteByte('-')
		default:
			b.WriteByte(' ')
		}
		b.WriteString(l.Text)
		b.WriteByte('\n')
		if l.NoNewline {
			b.WriteString(noNewlineMarker)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// File is one file entry of a diff. OldPath is empty for created files and
// NewPath is empty for deleted files; never both.
type File struct {
	OldPath   string `json:"oldPath,omitempty"`
	NewPath   string `json:"newPath,omitempty"`
	IsNew     bool   `json:"isNew,omitempty"`
	IsDeleted bool   `json:"isDeleted,omitempty"`
	IsRenamed bool   `json:"isRenamed,omitempty"`
	IsCopied  bool   `json:"isCopied,omitempty"`
	IsBinary  bool   `json:"isBinary,omitempty"`
	OldMode   string `json:"oldMode,omitempty"`
	NewMode   string `json:"newMode,omitempty"`
	Hunks     []Hunk `json:"hunks"`
}

// Path returns the path the file has after the change, or its old path when
// the change deletes it.
func (f *File) Path() string {
	if f.IsDeleted || f.NewPath == "" {
		return f.OldPath
	}
	return f.NewPath
}

// AddedLines returns every added line of the file in diff order.
func (f *File) AddedLines() []Line {
	var out []Line
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			if l.Kind == Added {
				out = append(out, l)
			}
		}
	}
	return out
}

// Range is an inclusive 1-based line range in the new file.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether line falls within r.
func (r Range) Contains(line int) bool {
	return line >= r.Start && line <= r.End
}

// AddedRanges collapses consecutive added lines into ranges of new-file lines.
func (f *File) AddedRanges() []Range {
	var out []Range
	for _, l := range f.AddedLines() {
		if n := len(out); n > 0 && out[n-1].End+1 == l.NewLine {
			out[n-1].End = l.NewLine
			continue
		}
		out = append(out, Range{Start: l.NewLine, End: l.NewLine})
	}
	return out
}

// Warning reports a hunk whose header disagreed with its body. The parsed hunk
// carries the actual counts.
type Warning struct {
	Path        string `json:"path"`
	Hunk        int    `json:"hunk"`
	Header      string `json:"header"`
	DeclaredOld int    `json:"declaredOld"`
	DeclaredNew int    `json:"declaredNew"`
	ActualOld   int    `json:"actualOld"`
	ActualNew   int    `json:"actualNew"`
	Message     string `json:"message"`
}

func (w Warning) String() string {
	if w.Message != "" {
		return w.Message
	}
	return fmt.Sprintf("hunk %d %q declares -%d +%d lines but has -%d +%d",
		w.Hunk, w.Header, w.DeclaredOld, w.DeclaredNew, w.ActualOld, w.ActualNew)
}

// Result is the outcome of parsing one diff.
type Result struct {
	Files    []File    `json:"files"`
	Warnings []Warning `json:"warnings,omitempty"`
}
