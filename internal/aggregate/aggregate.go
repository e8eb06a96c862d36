// Package aggregate holds the shared, mutex-guarded state a triage run
// accumulates across its worker pool: outcome counters, the set of
// crash signatures already seen, and a count per distinct error.
package aggregate

import (
	"sync"

	"afltriage-go/internal/model"
)

// State is safe for concurrent use. Critical sections are kept to the
// handful of map/counter operations below; callers must never hold
// State locked across I/O (report writes, logging) per the run's
// concurrency model.
type State struct {
	mu sync.Mutex

	crashed  int
	noCrash  int
	timedOut int
	errored  int

	signatures map[string]struct{}
	errorCount map[model.TriageErrorKey]errorEntry
}

type errorEntry struct {
	err   model.TriageError
	count int
}

// New returns an empty State.
func New() *State {
	return &State{
		signatures: make(map[string]struct{}),
		errorCount: make(map[model.TriageErrorKey]errorEntry),
	}
}

// Counts is a point-in-time snapshot of the run's outcome tally.
type Counts struct {
	Crashed  int
	NoCrash  int
	TimedOut int
	Errored  int
}

// RecordNoCrash increments the no-crash counter.
func (s *State) RecordNoCrash() {
	s.mu.Lock()
	s.noCrash++
	s.mu.Unlock()
}

// RecordTimeout increments the timed-out counter.
func (s *State) RecordTimeout() {
	s.mu.Lock()
	s.timedOut++
	s.mu.Unlock()
}

// RecordError increments the errored counter and bumps the occurrence
// count for this exact (kind, message, details) triple.
func (s *State) RecordError(e model.TriageError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errored++
	key := e.Key()
	entry := s.errorCount[key]
	entry.err = e
	entry.count++
	s.errorCount[key] = entry
}

// RecordCrash increments the crashed counter and reports whether
// stackhash had already been seen in this run. The first caller to
// observe a new stackhash (i.e. the one for whom seen is false) owns
// reporting that crash; later callers with the same stackhash should
// dedup-suppress their report.
func (s *State) RecordCrash(stackhash string) (seen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crashed++
	if _, ok := s.signatures[stackhash]; ok {
		return true
	}
	s.signatures[stackhash] = struct{}{}
	return false
}

// Snapshot returns the current counters.
func (s *State) Snapshot() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counts{Crashed: s.crashed, NoCrash: s.noCrash, TimedOut: s.timedOut, Errored: s.errored}
}

// SignatureCount returns the number of distinct crash signatures seen.
func (s *State) SignatureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.signatures)
}

// UniqueErrors returns every distinct recorded error with its
// occurrence count, in no particular order; callers that need a stable
// order should sort the result themselves.
func (s *State) UniqueErrors() []UniqueError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UniqueError, 0, len(s.errorCount))
	for _, entry := range s.errorCount {
		out = append(out, UniqueError{Err: entry.err, Count: entry.count})
	}
	return out
}

// UniqueError pairs a distinct TriageError with how many test cases
// produced it.
type UniqueError struct {
	Err   model.TriageError
	Count int
}
