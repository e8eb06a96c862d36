// Package classify determines what kind of input path the user gave
// (a single file, a plain directory, or a fuzzer output directory) and
// enumerates the concrete test-case files it contains.
package classify

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"

	"afltriage-go/internal/model"
)

// fuzzerDirMarkers are the fuzzer-directory recognition files/dirs;
// a directory containing any of these is a FuzzerDir, not a PlainDir.
var fuzzerDirMarkers = []string{"fuzzer_stats", "queue", "crashes"}

// Classify decides whether path is missing, a single file, a plain
// directory, or a fuzzer-output directory.
func Classify(path string) (model.InputKind, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.InputMissing, nil
		}
		return model.InputUnknown, fmt.Errorf("classify: stat %s: %w", path, err)
	}

	if info.Mode().IsRegular() {
		return model.InputSingle, nil
	}

	if info.IsDir() {
		for _, marker := range fuzzerDirMarkers {
			if _, err := os.Stat(filepath.Join(path, marker)); err == nil {
				return model.InputFuzzerDir, nil
			}
		}
		return model.InputPlainDir, nil
	}

	return model.InputUnknown, nil
}

// Enumerate lists the concrete test-case files under path according to
// kind, in a stable (sorted) order.
func Enumerate(path string, kind model.InputKind) ([]model.Testcase, error) {
	switch kind {
	case model.InputSingle:
		return []model.Testcase{newTestcase(path)}, nil

	case model.InputPlainDir:
		return enumerateDir(path)

	case model.InputFuzzerDir:
		tcs, err := enumerateDir(filepath.Join(path, "crashes"))
		if err != nil {
			return nil, err
		}
		out := tcs[:0]
		for _, tc := range tcs {
			if filepath.Base(tc.Path) == "README.txt" {
				continue
			}
			out = append(out, tc)
		}
		return out, nil

	case model.InputMissing:
		return nil, fmt.Errorf("classify: enumerate: %s does not exist", path)

	default:
		return nil, fmt.Errorf("classify: enumerate: %s is not a recognized input kind", path)
	}
}

func enumerateDir(dir string) ([]model.Testcase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("classify: read dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]model.Testcase, 0, len(names))
	for _, name := range names {
		out = append(out, newTestcase(filepath.Join(dir, name)))
	}
	return out, nil
}

func newTestcase(path string) model.Testcase {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return model.Testcase{Path: path, UniqueID: UniqueID(abs)}
}

// UniqueID derives a filesystem-safe, stable token from an absolute
// path: 16 lowercase hex digits of its xxhash64 digest.
func UniqueID(absPath string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(absPath))
}
