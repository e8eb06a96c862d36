package model

import "testing"

func TestTriageErrorKeyCoalescesEqualErrors(t *testing.T) {
	a := TriageError{Kind: ErrCommand, Message: "failed to execute", Details: []string{"exit 1", "no such file"}}
	b := TriageError{Kind: ErrCommand, Message: "failed to execute", Details: []string{"exit 1", "no such file"}}
	c := TriageError{Kind: ErrCommand, Message: "failed to execute", Details: []string{"exit 1"}}

	if a.Key() != b.Key() {
		t.Fatalf("structurally identical errors produced different keys")
	}
	if a.Key() == c.Key() {
		t.Fatalf("errors with different detail counts produced the same key")
	}
}

func TestTriageErrorErrorFormatting(t *testing.T) {
	cases := []struct {
		name string
		err  TriageError
		want string
	}{
		{"no details", TriageError{Message: "plain"}, "plain"},
		{"one detail", TriageError{Message: "one", Details: []string{"why"}}, "one: why"},
		{"many details", TriageError{Message: "many", Details: []string{"a", "b"}}, "many:\n  a\n  b"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("%s: Error() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestTriageErrorKindString(t *testing.T) {
	cases := map[TriageErrorKind]string{
		ErrCommand:             "Command",
		ErrInternal:            "Internal",
		ErrTimeout:             "Timeout",
		TriageErrorKind(99):    "Unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", k, got, want)
		}
	}
}
