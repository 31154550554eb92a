package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	rerrors "reviewctx/internal/errors"
)

const noNewlineMarker = `\ No newline at end of file`

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@ ?(.*)$`)

// Parse parses unified-diff text. Empty input yields an empty result. Input
// that contains no recognizable file entry fails with a PARSE_FAILED error.
// Inconsistent hunk headers never fail the parse; they are reported as
// warnings and the counts are rebuilt from the body.
func Parse(text string) (*Result, error) {
	res := &Result{Files: []File{}}
	if strings.TrimSpace(text) == "" {
		return res, nil
	}

	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}

	p := &parser{lines: lines, res: res}
	p.run()

	if len(res.Files) == 0 {
		return nil, rerrors.New(rerrors.ParseFailed, "input is not a unified diff", nil)
	}
	return res, nil
}

type parser struct {
	lines []string
	i     int
	res   *Result
}

func (p *parser) peek(off int) (string, bool) {
	if p.i+off >= len(p.lines) {
		return "", false
	}
	return p.lines[p.i+off], true
}

func (p *parser) run() {
	for p.i < len(p.lines) {
		line := p.lines[p.i]
		switch {
		case strings.HasPrefix(line, "diff --git "):
			p.gitFile()
		case p.atPlainHeader():
			p.plainFile()
		default:
			p.i++
		}
	}
}

// atPlainHeader reports whether the cursor sits on a "--- "/"+++ " pair.
func (p *parser) atPlainHeader() bool {
	cur, _ := p.peek(0)
	next, ok := p.peek(1)
	return ok && strings.HasPrefix(cur, "--- ") && strings.HasPrefix(next, "+++ ")
}

// atStructural reports whether the cursor starts something other than a hunk
// body line: a new hunk, a new git file, or a plain header followed by a hunk.
func (p *parser) atStructural() bool {
	cur, _ := p.peek(0)
	if strings.HasPrefix(cur, "@@ ") || strings.HasPrefix(cur, "diff --git ") {
		return true
	}
	if !p.atPlainHeader() {
		return false
	}
	third, ok := p.peek(2)
	return ok && strings.HasPrefix(third, "@@ ")
}

func (p *parser) gitFile() {
	oldPath, newPath := splitGitHeader(strings.TrimPrefix(strings.TrimRight(p.lines[p.i], " \t"), "diff --git "))
	f := File{OldPath: oldPath, NewPath: newPath}
	p.i++

header:
	for p.i < len(p.lines) {
		line := strings.TrimRight(p.lines[p.i], " \t")
		switch {
		case strings.HasPrefix(line, "@@ "), strings.HasPrefix(line, "diff --git "):
			break header
		case strings.HasPrefix(line, "new file mode "):
			f.IsNew = true
			f.NewMode = strings.TrimPrefix(line, "new file mode ")
		case strings.HasPrefix(line, "deleted file mode "):
			f.IsDeleted = true
			f.OldMode = strings.TrimPrefix(line, "deleted file mode ")
		case strings.HasPrefix(line, "old mode "):
			f.OldMode = strings.TrimPrefix(line, "old mode ")
		case strings.HasPrefix(line, "new mode "):
			f.NewMode = strings.TrimPrefix(line, "new mode ")
		case strings.HasPrefix(line, "rename from "):
			f.IsRenamed = true
			f.OldPath = unquotePath(strings.TrimPrefix(line, "rename from "))
		case strings.HasPrefix(line, "rename to "):
			f.IsRenamed = true
			f.NewPath = unquotePath(strings.TrimPrefix(line, "rename to "))
		case strings.HasPrefix(line, "copy from "):
			f.IsCopied = true
			f.OldPath = unquotePath(strings.TrimPrefix(line, "copy from "))
		case strings.HasPrefix(line, "copy to "):
			f.IsCopied = true
			f.NewPath = unquotePath(strings.TrimPrefix(line, "copy to "))
		case strings.HasPrefix(line, "Binary files "):
			f.IsBinary = true
		case line == "GIT binary patch":
			f.IsBinary = true
			p.i++
			for p.i < len(p.lines) && !strings.HasPrefix(p.lines[p.i], "diff --git ") {
				p.i++
			}
			break header
		case strings.HasPrefix(line, "--- "):
			if old := headerPath(strings.TrimPrefix(line, "--- ")); old == "" {
				f.IsNew = true
			} else {
				f.OldPath = old
			}
		case strings.HasPrefix(line, "+++ "):
			if nw := headerPath(strings.TrimPrefix(line, "+++ ")); nw == "" {
				f.IsDeleted = true
			} else {
				f.NewPath = nw
			}
		}
		p.i++
	}

	p.hunks(&f)
	p.finish(f)
}

func (p *parser) plainFile() {
	f := File{
		OldPath: headerPath(strings.TrimPrefix(p.lines[p.i], "--- ")),
		NewPath: headerPath(strings.TrimPrefix(p.lines[p.i+1], "+++ ")),
	}
	f.IsNew = f.OldPath == ""
	f.IsDeleted = f.NewPath == ""
	p.i += 2

	p.hunks(&f)
	p.finish(f)
}

func (p *parser) finish(f File) {
	if f.IsNew {
		f.OldPath = ""
	}
	if f.IsDeleted {
		f.NewPath = ""
	}
	if f.OldPath == "" && f.NewPath == "" {
		return
	}
	if f.OldPath != "" && f.NewPath != "" && f.OldPath != f.NewPath && !f.IsCopied {
		f.IsRenamed = true
	}
	if f.IsBinary {
		f.Hunks = nil
	}
	if f.Hunks == nil {
		f.Hunks = []Hunk{}
	}
	p.res.Files = append(p.res.Files, f)
}

func (p *parser) hunks(f *File) {
	for p.i < len(p.lines) && strings.HasPrefix(p.lines[p.i], "@@") {
		p.hunk(f)
	}
}

func (p *parser) hunk(f *File) {
	header := strings.TrimRight(p.lines[p.i], " \t")
	index := len(f.Hunks)
	m := hunkHeaderRe.FindStringSubmatch(header)
	p.i++
	if m == nil {
		p.warn(f, Warning{Hunk: index, Header: header, Message: fmt.Sprintf("unparseable hunk header %q skipped", header)})
		for p.i < len(p.lines) && !p.atStructural() && isBodyLine(p.lines[p.i]) {
			p.i++
		}
		return
	}

	h := Hunk{
		OldStart: atoi(m[1]),
		OldCount: countOrOne(m[2]),
		NewStart: atoi(m[3]),
		NewCount: countOrOne(m[4]),
		Section:  m[5],
	}
	oldLeft, newLeft := h.OldCount, h.NewCount
	oldNo, newNo := h.OldStart, h.NewStart
	// "-0,0" anchors before the first line of a file that does not exist yet.
	if oldNo == 0 {
		oldNo = 1
	}
	if newNo == 0 {
		newNo = 1
	}

body:
	for p.i < len(p.lines) {
		line := p.lines[p.i]
		exhausted := oldLeft <= 0 && newLeft <= 0
		if strings.HasPrefix(line, "@@") || strings.HasPrefix(line, "diff --git ") {
			break
		}
		if exhausted && (line == "-- " || p.atPlainHeader()) {
			break
		}
		if !exhausted && p.atStructural() {
			break
		}

		if line == "" {
			if exhausted || oldLeft <= 0 || newLeft <= 0 {
				break
			}
			line = " "
		}

		switch line[0] {
		case '+':
			h.Lines = append(h.Lines, Line{Kind: Added, Text: line[1:], NewLine: newNo})
			newNo++
			newLeft--
		case '-':
			h.Lines = append(h.Lines, Line{Kind: Removed, Text: line[1:], OldLine: oldNo})
			oldNo++
			oldLeft--
		case ' ':
			h.Lines = append(h.Lines, Line{Kind: Context, Text: line[1:], OldLine: oldNo, NewLine: newNo})
			oldNo++
			newNo++
			oldLeft--
			newLeft--
		case '\\':
			if n := len(h.Lines); n > 0 {
				h.Lines[n-1].NoNewline = true
			}
		default:
			break body
		}
		p.i++
	}

	if len(h.Lines) == 0 {
		p.warn(f, Warning{Hunk: index, Header: header, DeclaredOld: h.OldCount, DeclaredNew: h.NewCount,
			Message: fmt.Sprintf("hunk %q has no body and was dropped", header)})
		return
	}

	actualOld, actualNew := 0, 0
	for _, l := range h.Lines {
		switch l.Kind {
		case Added:
			actualNew++
		case Removed:
			actualOld++
		default:
			actualOld++
			actualNew++
		}
	}
	if actualOld != h.OldCount || actualNew != h.NewCount {
		p.warn(f, Warning{
			Hunk:        index,
			Header:      header,
			DeclaredOld: h.OldCount,
			DeclaredNew: h.NewCount,
			ActualOld:   actualOld,
			ActualNew:   actualNew,
		})
		h.OldCount, h.NewCount = actualOld, actualNew
	}
	f.Hunks = append(f.Hunks, h)
}

func (p *parser) warn(f *File, w Warning) {
	w.Path = f.NewPath
	if w.Path == "" {
		w.Path = f.OldPath
	}
	p.res.Warnings = append(p.res.Warnings, w)
}

func isBodyLine(l string) bool {
	return l == "" || strings.ContainsAny(l[:1], "+- \\")
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func countOrOne(s string) int {
	if s == "" {
		return 1
	}
	return atoi(s)
}

// headerPath cleans a "---"/"+++" operand: trailing timestamps and
// whitespace go, quoting is undone, /dev/null becomes "" and the a/ b/
// prefixes are stripped.
func headerPath(s string) string {
	if i := strings.IndexByte(s, '\t'); i >= 0 {
		s = s[:i]
	}
	s = unquotePath(strings.TrimRight(s, " "))
	if s == "/dev/null" {
		return ""
	}
	return stripPrefix(s)
}

func unquotePath(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}

func stripPrefix(s string) string {
	if strings.HasPrefix(s, "a/") || strings.HasPrefix(s, "b/") {
		return s[2:]
	}
	return s
}

// splitGitHeader splits the operands of "diff --git a/x b/y".
func splitGitHeader(rest string) (string, string) {
	if strings.HasPrefix(rest, `"`) {
		if end := closingQuote(rest); end > 0 {
			old := unquotePath(rest[:end+1])
			return stripPrefix(old), stripPrefix(unquotePath(strings.TrimSpace(rest[end+1:])))
		}
	}
	if strings.HasSuffix(rest, `"`) {
		if start := strings.LastIndex(rest, ` "`); start >= 0 {
			return stripPrefix(rest[:start]), stripPrefix(unquotePath(rest[start+1:]))
		}
	}
	// Unchanged names are symmetric: "a/<p> b/<p>".
	if n := len(rest); n%2 == 1 {
		left, right := rest[:n/2], rest[n/2+1:]
		if rest[n/2] == ' ' && stripPrefix(left) == stripPrefix(right) {
			return stripPrefix(left), stripPrefix(right)
		}
	}
	if i := strings.Index(rest, " b/"); i >= 0 {
		return stripPrefix(rest[:i]), stripPrefix(rest[i+1:])
	}
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		return stripPrefix(rest[:i]), stripPrefix(rest[i+1:])
	}
	return stripPrefix(rest), stripPrefix(rest)
}

func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}
