// Package argvsub implements the one substitution rule the triage
// engine applies to target argv: replacing every literal "@@" token
// with a concrete test-case path.
package argvsub

import "strings"

// Placeholder is the token replaced by the test-case path.
const Placeholder = "@@"

// Substitute returns a copy of argv with every occurrence of "@@" in
// every element replaced by path. Elements without "@@", and any other
// positional tokens, are preserved verbatim.
func Substitute(argv []string, path string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = strings.ReplaceAll(a, Placeholder, path)
	}
	return out
}

// Count returns the number of "@@" occurrences across all of argv.
func Count(argv []string) int {
	n := 0
	for _, a := range argv {
		n += strings.Count(a, Placeholder)
	}
	return n
}
