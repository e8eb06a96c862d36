package aggregate

import (
	"sync"
	"testing"

	"afltriage-go/internal/model"
)

func TestRecordCrashDedup(t *testing.T) {
	s := New()

	if seen := s.RecordCrash("abc123"); seen {
		t.Fatal("first observation of a signature reported seen=true")
	}
	if seen := s.RecordCrash("abc123"); !seen {
		t.Fatal("second observation of the same signature reported seen=false")
	}
	if seen := s.RecordCrash("def456"); seen {
		t.Fatal("first observation of a new signature reported seen=true")
	}

	counts := s.Snapshot()
	if counts.Crashed != 3 {
		t.Fatalf("Crashed = %d, want 3", counts.Crashed)
	}
	if s.SignatureCount() != 2 {
		t.Fatalf("SignatureCount() = %d, want 2", s.SignatureCount())
	}
}

func TestRecordErrorCoalescesByKey(t *testing.T) {
	s := New()
	e := model.TriageError{Kind: model.ErrCommand, Message: "boom", Details: []string{"line1"}}

	s.RecordError(e)
	s.RecordError(e)
	s.RecordError(model.TriageError{Kind: model.ErrCommand, Message: "other", Details: nil})

	unique := s.UniqueErrors()
	if len(unique) != 2 {
		t.Fatalf("UniqueErrors() has %d entries, want 2", len(unique))
	}
	for _, ue := range unique {
		if ue.Err.Message == "boom" && ue.Count != 2 {
			t.Fatalf("boom count = %d, want 2", ue.Count)
		}
	}

	counts := s.Snapshot()
	if counts.Errored != 3 {
		t.Fatalf("Errored = %d, want 3", counts.Errored)
	}
}

func TestConcurrentRecordCrashOnlyOneWinner(t *testing.T) {
	s := New()
	const n = 100
	var wg sync.WaitGroup
	wins := make([]bool, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			wins[i] = !s.RecordCrash("same-signature")
		}()
	}
	wg.Wait()

	firstSeen := 0
	for _, w := range wins {
		if w {
			firstSeen++
		}
	}
	if firstSeen != 1 {
		t.Fatalf("%d goroutines observed seen=false, want exactly 1", firstSeen)
	}
	if s.Snapshot().Crashed != n {
		t.Fatalf("Crashed = %d, want %d", s.Snapshot().Crashed, n)
	}
}
