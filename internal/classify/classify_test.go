package classify

import (
	"os"
	"path/filepath"
	"testing"

	"afltriage-go/internal/model"
)

func TestClassify(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "does-not-exist")

	single := filepath.Join(dir, "seed.bin")
	if err := os.WriteFile(single, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	plainDir := filepath.Join(dir, "plain")
	if err := os.Mkdir(plainDir, 0o755); err != nil {
		t.Fatal(err)
	}

	fuzzerDir := filepath.Join(dir, "fuzzer-out")
	if err := os.Mkdir(fuzzerDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(fuzzerDir, "crashes"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fuzzerDir, "fuzzer_stats"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		path string
		want model.InputKind
	}{
		{missing, model.InputMissing},
		{single, model.InputSingle},
		{plainDir, model.InputPlainDir},
		{fuzzerDir, model.InputFuzzerDir},
	}

	for _, tc := range cases {
		got, err := Classify(tc.path)
		if err != nil {
			t.Fatalf("Classify(%s): %v", tc.path, err)
		}
		if got != tc.want {
			t.Errorf("Classify(%s) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestEnumerateFuzzerDirSkipsReadme(t *testing.T) {
	dir := t.TempDir()
	crashes := filepath.Join(dir, "crashes")
	if err := os.Mkdir(crashes, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(crashes, "README.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(crashes, "id:000000"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tcs, err := Enumerate(dir, model.InputFuzzerDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(tcs) != 1 || filepath.Base(tcs[0].Path) != "id:000000" {
		t.Fatalf("got %v, want exactly one entry for id:000000", tcs)
	}
}

func TestEnumerateIsSortedAndStable(t *testing.T) {
	dir := t.TempDir()
	names := []string{"c", "a", "b"}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tcs, err := Enumerate(dir, model.InputPlainDir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if filepath.Base(tcs[i].Path) != w {
			t.Fatalf("tcs[%d] = %s, want %s", i, tcs[i].Path, w)
		}
	}
}

func TestUniqueIDStableForSamePath(t *testing.T) {
	a := UniqueID("/tmp/foo/bar")
	b := UniqueID("/tmp/foo/bar")
	if a != b {
		t.Fatalf("UniqueID not stable: %s != %s", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("UniqueID length = %d, want 16", len(a))
	}
	if UniqueID("/tmp/foo/baz") == a {
		t.Fatalf("different paths hashed to the same id")
	}
}
