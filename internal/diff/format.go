package diff

import (
	"bytes"
	"fmt"

	godiff "github.com/sourcegraph/go-diff/diff"
)

const defaultMode = "100644"

// Format prints files back to git-style unified-diff text. Parsing the output
// yields the same files, hunks and line classifications.
func Format(files []File) ([]byte, error) {
	fds := make([]*godiff.FileDiff, 0, len(files))
	for i := range files {
		fds = append(fds, toFileDiff(&files[i]))
	}
	return godiff.PrintMultiFileDiff(fds)
}

func toFileDiff(f *File) *godiff.FileDiff {
	oldName, newName := f.OldPath, f.NewPath
	if oldName == "" {
		oldName = newName
	}
	if newName == "" {
		newName = oldName
	}

	ext := []string{fmt.Sprintf("diff --git a/%s b/%s", oldName, newName)}
	switch {
	case f.IsNew:
		ext = append(ext, "new file mode "+orDefault(f.NewMode))
	case f.IsDeleted:
		ext = append(ext, "deleted file mode "+orDefault(f.OldMode))
	case f.OldMode != "" && f.NewMode != "" && f.OldMode != f.NewMode:
		ext = append(ext, "old mode "+f.OldMode, "new mode "+f.NewMode)
	}
	switch {
	case f.IsCopied:
		ext = append(ext, "copy from "+f.OldPath, "copy to "+f.NewPath)
	case f.IsRenamed:
		ext = append(ext, "rename from "+f.OldPath, "rename to "+f.NewPath)
	}

	fd := &godiff.FileDiff{OrigName: "a/" + oldName, NewName: "b/" + newName}
	if f.IsNew {
		fd.OrigName = "/dev/null"
	}
	if f.IsDeleted {
		fd.NewName = "/dev/null"
	}

	if f.IsBinary {
		fd.Extended = append(ext, fmt.Sprintf("Binary files %s and %s differ", fd.OrigName, fd.NewName))
		return fd
	}
	fd.Extended = ext
	for _, h := range f.Hunks {
		fd.Hunks = append(fd.Hunks, toHunk(h))
	}
	return fd
}

func toHunk(h Hunk) *godiff.Hunk {
	var body bytes.Buffer
	var noNewlineAt int32
	for i, l := range h.Lines {
		switch l.Kind {
		case Added:
			body.WriteByte('+')
		case Removed:
			body.WriteByte('-')
		default:
			body.WriteByte(' ')
		}
		body.WriteString(l.Text)
		// The printer emits the marker itself when the body lacks a final newline.
		if l.NoNewline && i == len(h.Lines)-1 {
			continue
		}
		body.WriteByte('\n')
		if l.NoNewline && noNewlineAt == 0 {
			noNewlineAt = int32(body.Len())
		}
	}
	return &godiff.Hunk{
		OrigStartLine:   int32(h.OldStart),
		OrigLines:       int32(h.OldCount),
		OrigNoNewlineAt: noNewlineAt,
		NewStartLine:    int32(h.NewStart),
		NewLines:        int32(h.NewCount),
		Section:         h.Section,
		Body:            body.Bytes(),
	}
}

func orDefault(mode string) string {
	if mode == "" {
		return defaultMode
	}
	return mode
}
