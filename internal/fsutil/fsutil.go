// Package fsutil provides the small filesystem helpers the
// orchestrator and report formatter need: tailing captured output and
// writing (or printing) a finished report.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TailLines returns the last n lines of s, newest content last (i.e.
// reading order is preserved, only the earliest lines are dropped).
// n <= 0 means "all lines".
func TailLines(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n") + "\n"
}

// WriteReport writes body to <dir>/<filename>, or to stdout if dir is
// "-" (the terminal-output convention from -o).
func WriteReport(dir, filename, body string) error {
	if dir == "-" {
		fmt.Println(body)
		return nil
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("fsutil: write report %s: %w", path, err)
	}
	return nil
}
