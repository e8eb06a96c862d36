package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTailLines(t *testing.T) {
	s := "a\nb\nc\nd\n"
	if got := TailLines(s, 2); got != "c\nd\n" {
		t.Fatalf("TailLines(2) = %q", got)
	}
	if got := TailLines(s, 0); got != s {
		t.Fatalf("TailLines(0) = %q, want original", got)
	}
	if got := TailLines(s, 100); got != s {
		t.Fatalf("TailLines(100) = %q, want original", got)
	}
}

func TestWriteReportToDir(t *testing.T) {
	dir := t.TempDir()
	if err := WriteReport(dir, "report.txt", "body"); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "report.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "body" {
		t.Fatalf("wrote %q, want %q", got, "body")
	}
}
