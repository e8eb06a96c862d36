// Package marker extracts payload substrings delimited by unique
// start/end tag pairs from a captured debugger output stream.
package marker

import (
	"fmt"
	"strings"
)

// Marker is a pair of literal ASCII tags a debugger-side script writes
// as their own line to frame a payload.
type Marker struct {
	Start string
	End   string
}

var (
	// ChildOutput frames whatever the target itself wrote to a stream.
	ChildOutput = Marker{
		Start: "----AFLTRIAGE_CHILD_OUTPUT_START----",
		End:   "----AFLTRIAGE_CHILD_OUTPUT_END----",
	}
	// Backtrace frames the triage script's JSON/diagnostic payload.
	Backtrace = Marker{
		Start: "----AFLTRIAGE_BACKTRACE_START----",
		End:   "----AFLTRIAGE_BACKTRACE_END----",
	}
)

// Extract returns the substring between the first occurrence of
// m.Start and the first occurrence of m.End in text. If that End
// occurrence lies before the payload start, Extract fails as
// out-of-order rather than searching for a later End.
//
// The payload begins immediately after the newline terminating Start.
// Extraction is idempotent with respect to trailing text after End:
// anything appended after the end marker never changes the result.
func Extract(text string, m Marker) (string, error) {
	startIdx := strings.Index(text, m.Start)
	if startIdx < 0 {
		return "", fmt.Errorf("could not find %s", m.Start)
	}

	endIdx := strings.Index(text, m.End)
	if endIdx < 0 {
		return "", fmt.Errorf("could not find %s", m.End)
	}

	payloadStart := startIdx + len(m.Start) + 1 // skip the tag's terminating newline
	if payloadStart > endIdx {
		return "", fmt.Errorf("start marker and end marker out-of-order")
	}

	return text[payloadStart:endIdx], nil
}
