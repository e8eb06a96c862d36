package orchestrator

import "afltriage-go/internal/report"

// Config is the fully-resolved, validated set of inputs one triage run
// needs. It is built by cmd/afltriage from CLI flags.
type Config struct {
	Inputs    []string
	OutputDir string // "-" means print reports to the terminal

	Jobs      int // 0 = autotuned
	TimeoutMS int

	UseStdin    bool
	ProfileOnly bool
	SkipProfile bool
	Debug       bool

	ChildOutput      bool
	ChildOutputLines int

	OutputFormat report.Format

	GdbPath      string
	TriageScript string // external script override; empty = embedded

	TargetArgv []string
}
