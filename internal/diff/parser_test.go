package diff

import (
	"strings"
	"testing"

	rerrors "reviewctx/internal/errors"
)

func TestParse_Empty(t *testing.T) {
	for _, in := range []string{"", "   \n\n", "\r\n"} {
		res, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) unexpected error: %v", in, err)
		}
		if len(res.Files) != 0 {
			t.Errorf("Parse(%q) expected 0 files, got %d", in, len(res.Files))
		}
	}
}

func TestParse_NotADiff(t *testing.T) {
	_, err := Parse("hello world\nthis is not a diff\n")
	if err == nil {
		t.Fatal("expected error for non-diff input")
	}
	if !rerrors.HasCode(err, rerrors.ParseFailed) {
		t.Errorf("expected PARSE_FAILED, got %v", err)
	}
}

func TestParse_SingleFile(t *testing.T) {
	in := `diff --git a/foo.go b/foo.go
index 1234567..abcdefg 100644
--- a/foo.go
+++ b/foo.go
@@ -1,5 +1,6 @@ package main
 package main

 func main() {
+	fmt.Println("hello")
 	fmt.Println("world")
 }
`
	res, err := Parse(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(res.Files))
	}
	if len(res.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", res.Warnings)
	}

	f := res.Files[0]
	if f.OldPath != "foo.go" || f.NewPath != "foo.go" {
		t.Errorf("paths = %q -> %q, want foo.go -> foo.go", f.OldPath, f.NewPath)
	}
	if f.IsNew || f.IsDeleted || f.IsRenamed || f.IsBinary {
		t.Errorf("unexpected flags: %+v", f)
	}
	if len(f.Hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(f.Hunks))
	}

	h := f.Hunks[0]
	if h.Section != "package main" {
		t.Errorf("Section = %q", h.Section)
	}
	if len(h.Lines) != 6 {
		t.Fatalf("expected 6 lines, got %d", len(h.Lines))
	}
	// The blank body line is context.
	if h.Lines[1].Kind != Context || h.Lines[1].Text != "" || h.Lines[1].NewLine != 2 {
		t.Errorf("blank line = %+v", h.Lines[1])
	}
	added := h.Lines[3]
	if added.Kind != Added || added.NewLine != 4 || added.OldLine != 0 {
		t.Errorf("added line = %+v, want new line 4 only", added)
	}
	last := h.Lines[5]
	if last.OldLine != 5 || last.NewLine != 6 {
		t.Errorf("last context line = %+v, want old 5 new 6", last)
	}
}

func TestParse_CountsMatchBody(t *testing.T) {
	in := `--- a/x.py
+++ b/x.py
@@ -10,3 +10,5 @@
 def a():
-    return 1
+    return 2
+
+
 
@@ -30 +31 @@
-old
+new
`
	res, err := Parse(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, f := range res.Files {
		for i, h := range f.Hunks {
			oldN, newN := 0, 0
			for _, l := range h.Lines {
				if l.Kind != Added {
					oldN++
				}
				if l.Kind != Removed {
					newN++
				}
			}
			if oldN != h.OldCount || newN != h.NewCount {
				t.Errorf("hunk %d: counts -%d +%d, body -%d +%d", i, h.OldCount, h.NewCount, oldN, newN)
			}
		}
	}
	if len(res.Files[0].Hunks) != 2 {
		t.Fatalf("expected 2 hunks, got %d", len(res.Files[0].Hunks))
	}
	second := res.Files[0].Hunks[1]
	if second.OldCount != 1 || second.NewCount != 1 {
		t.Errorf("omitted counts should default to 1, got -%d +%d", second.OldCount, second.NewCount)
	}
	if second.Lines[1].NewLine != 31 {
		t.Errorf("NewLine = %d, want 31", second.Lines[1].NewLine)
	}
}

func TestParse_MismatchedHeader(t *testing.T) {
	in := `diff --git a/lib.rs b/lib.rs
--- a/lib.rs
+++ b/lib.rs
@@ -10,0 +10,5 @@
+fn a() {}
+fn b() {}
+fn c() {}
+fn d() {}
@@ -40,2 +44,2 @@
 ctx
-gone
+here
diff --git a/other.rs b/other.rs
--- a/other.rs
+++ b/other.rs
@@ -1 +1 @@
-x
+y
`
	res, err := Parse(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d: %v", len(res.Warnings), res.Warnings)
	}
	w := res.Warnings[0]
	if w.Path != "lib.rs" || w.Hunk != 0 || w.DeclaredNew != 5 || w.ActualNew != 4 {
		t.Errorf("warning = %+v", w)
	}

	if len(res.Files) != 2 {
		t.Fatalf("expected parsing to continue to the second file, got %d files", len(res.Files))
	}
	h := res.Files[0].Hunks[0]
	if h.NewCount != 4 {
		t.Errorf("NewCount = %d, want reconstructed 4", h.NewCount)
	}
	for i, l := range h.Lines {
		if l.NewLine != 10+i {
			t.Errorf("line %d NewLine = %d, want %d", i, l.NewLine, 10+i)
		}
	}
	if len(res.Files[0].Hunks) != 2 {
		t.Errorf("expected following hunk to parse, got %d hunks", len(res.Files[0].Hunks))
	}
}

func TestParse_ExtraLinesAbsorbed(t *testing.T) {
	in := `--- a/a.txt
+++ b/a.txt
@@ -1,1 +1,1 @@
-one
+uno
+dos
`
	res, err := Parse(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := res.Files[0].Hunks[0]
	if h.NewCount != 2 || len(h.Lines) != 3 {
		t.Errorf("hunk = %+v", h)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %d", len(res.Warnings))
	}
}

func TestParse_NewDeletedRenamedBinary(t *testing.T) {
	in := `diff --git a/new.go b/new.go
new file mode 100644
index 0000000..1111111
--- /dev/null
+++ b/new.go
@@ -0,0 +1,2 @@
+package x
+var A = 1
diff --git a/old.go b/old.go
deleted file mode 100644
index 2222222..0000000
--- a/old.go
+++ /dev/null
@@ -1 +0,0 @@
-package x
diff --git a/src/before.ts b/src/after.ts
similarity index 90%
rename from src/before.ts
rename to src/after.ts
index 3333333..4444444 100644
--- a/src/before.ts
+++ b/src/after.ts
@@ -1,2 +1,2 @@
-export const a = 1;
+export const a = 2;
 export const b = 2;
diff --git a/logo.png b/logo.png
index 5555555..6666666 100644
Binary files a/logo.png and b/logo.png differ
diff --git a/run.sh b/run.sh
old mode 100644
new mode 100755
`
	res, err := Parse(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Files) != 5 {
		t.Fatalf("expected 5 files, got %d", len(res.Files))
	}

	created := res.Files[0]
	if !created.IsNew || created.OldPath != "" || created.NewPath != "new.go" {
		t.Errorf("new file = %+v", created)
	}
	if created.Hunks[0].Lines[0].NewLine != 1 {
		t.Errorf("first added line = %d, want 1", created.Hunks[0].Lines[0].NewLine)
	}

	deleted := res.Files[1]
	if !deleted.IsDeleted || deleted.NewPath != "" || deleted.Path() != "old.go" {
		t.Errorf("deleted file = %+v", deleted)
	}

	renamed := res.Files[2]
	if !renamed.IsRenamed || renamed.OldPath != "src/before.ts" || renamed.NewPath != "src/after.ts" {
		t.Errorf("renamed file = %+v", renamed)
	}

	bin := res.Files[3]
	if !bin.IsBinary || len(bin.Hunks) != 0 || bin.Path() != "logo.png" {
		t.Errorf("binary file = %+v", bin)
	}

	mode := res.Files[4]
	if mode.OldMode != "100644" || mode.NewMode != "100755" || len(mode.Hunks) != 0 {
		t.Errorf("mode change = %+v", mode)
	}
}

func TestParse_GitBinaryPatch(t *testing.T) {
	in := "diff --git a/img.bin b/img.bin\n" +
		"index 1..2 100644\n" +
		"GIT binary patch\n" +
		"literal 12\n" +
		"TcmZ?wbhEHbRA2}I1pfd5\n" +
		"\n" +
		"literal 0\n" +
		"HcmV?d00001\n" +
		"\n" +
		"diff --git a/a.txt b/a.txt\n" +
		"--- a/a.txt\n" +
		"+++ b/a.txt\n" +
		"@@ -1 +1 @@\n" +
		"-a\n" +
		"+b\n"
	res, err := Parse(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(res.Files))
	}
	if !res.Files[0].IsBinary || len(res.Files[0].Hunks) != 0 {
		t.Errorf("binary patch = %+v", res.Files[0])
	}
	if res.Files[1].Path() != "a.txt" || len(res.Files[1].Hunks) != 1 {
		t.Errorf("second file = %+v", res.Files[1])
	}
}

func TestParse_CRLFAndTrailingWhitespace(t *testing.T) {
	in := "diff --git a/w.c b/w.c  \r\n" +
		"--- a/w.c\t2024-01-01 00:00:00\r\n" +
		"+++ b/w.c\t2024-01-02 00:00:00\r\n" +
		"@@ -1,2 +1,2 @@   \r\n" +
		" int a;\r\n" +
		"-int b;\r\n" +
		"+int c;\r\n"
	res, err := Parse(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := res.Files[0]
	if f.NewPath != "w.c" {
		t.Errorf("NewPath = %q", f.NewPath)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
	if got := f.Hunks[0].Lines[2].Text; got != "int c;" {
		t.Errorf("Text = %q, want CR stripped", got)
	}
}

func TestParse_QuotedAndSpacedPaths(t *testing.T) {
	in := `diff --git "a/dir/caf\303\251.txt" "b/dir/caf\303\251.txt"
--- "a/dir/caf\303\251.txt"
+++ "b/dir/caf\303\251.txt"
@@ -1 +1 @@
-a
+b
diff --git a/my file.txt b/my file.txt
index 1..2 100644
Binary files a/my file.txt and b/my file.txt differ
`
	res, err := Parse(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.Files[0].NewPath; got != "dir/café.txt" {
		t.Errorf("quoted path = %q", got)
	}
	if got := res.Files[1].NewPath; got != "my file.txt" {
		t.Errorf("spaced path = %q", got)
	}
	if res.Files[1].IsRenamed {
		t.Error("symmetric header should not be a rename")
	}
}

func TestParse_NoNewlineMarker(t *testing.T) {
	in := `--- a/n.txt
+++ b/n.txt
@@ -1 +1 @@
-old
\ No newline at end of file
+new
\ No newline at end of file
`
	res, err := Parse(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := res.Files[0].Hunks[0].Lines
	if len(lines) != 2 || !lines[0].NoNewline || !lines[1].NoNewline {
		t.Errorf("lines = %+v", lines)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

func TestParse_EmailPatchSignature(t *testing.T) {
	in := `From 1234 Mon Sep 17 00:00:00 2001
Subject: [PATCH] tweak
---
 a.txt | 2 +-
 1 file changed, 1 insertion(+), 1 deletion(-)

diff --git a/a.txt b/a.txt
--- a/a.txt
+++ b/a.txt
@@ -1 +1 @@
-a
+b
-- 
2.43.0
`
	res, err := Parse(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Files) != 1 || len(res.Files[0].Hunks[0].Lines) != 2 {
		t.Errorf("files = %+v", res.Files)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("signature should not be absorbed: %v", res.Warnings)
	}
}

func TestParse_UnparseableHunkHeader(t *testing.T) {
	in := `--- a/a.txt
+++ b/a.txt
@@ garbage @@
-a
+b
@@ -5 +5 @@
-c
+d
`
	res, err := Parse(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Files[0].Hunks) != 1 || res.Files[0].Hunks[0].OldStart != 5 {
		t.Errorf("hunks = %+v", res.Files[0].Hunks)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0].String(), "unparseable") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestFile_AddedRanges(t *testing.T) {
	in := `--- a/r.go
+++ b/r.go
@@ -1,3 +1,7 @@
 a
+b
+c
 d
+e
 f
+g
`
	res, err := Parse(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := res.Files[0].AddedRanges()
	want := []Range{{2, 3}, {5, 5}, {7, 7}}
	if len(got) != len(want) {
		t.Fatalf("AddedRanges() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("range %d = %v, want %v", i, got[i], want[i])
		}
	}
	if !want[0].Contains(3) || want[0].Contains(4) {
		t.Error("Range.Contains is wrong")
	}
}
