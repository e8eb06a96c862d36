// Package report turns a model.CrashContext into a human- and
// machine-readable crash report: headline, dedup signature, and the
// formatted body in one of three output formats.
package report

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"afltriage-go/internal/model"
)

// Format selects the report body's rendering.
type Format int

const (
	FormatText Format = iota
	FormatMarkdown
	FormatJSON
)

// ParseFormat maps a --output-format flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "text":
		return FormatText, nil
	case "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("report: unknown output format %q", s)
	}
}

// CrashReport is everything the orchestrator needs to either write a
// report file or suppress one as a duplicate.
type CrashReport struct {
	Headline      string             `json:"headline"`
	TerseHeadline string             `json:"terse_headline"`
	Stackhash     string             `json:"stackhash"`
	RegisterInfo  string             `json:"register_info"`
	CrashContext  model.CrashContext `json:"crash_context"`
	Backtrace     string             `json:"backtrace"`
	AsanBody      string             `json:"asan_body"`
	ChildStdout   string             `json:"child_stdout,omitempty"`
	ChildStderr   string             `json:"child_stderr,omitempty"`
}

var filenameUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Build derives a CrashReport from a stopped process's crash context
// and the target's own captured output.
func Build(cc model.CrashContext, childOut model.ChildOutput) CrashReport {
	sig := stackhash(cc.PrimaryThread)

	headline := headlineFor(cc)
	terse := filenameUnsafe.ReplaceAllString(terseHeadlineFor(cc), "_")
	if terse == "" {
		terse = "crash"
	}

	return CrashReport{
		Headline:      headline,
		TerseHeadline: terse,
		Stackhash:     sig,
		RegisterInfo:  formatRegisters(cc.PrimaryThread),
		CrashContext:  cc,
		Backtrace:     formatBacktrace(cc.PrimaryThread),
		AsanBody:      extractAsanBody(childOut.Stdout, childOut.Stderr),
		ChildStdout:   childOut.Stdout,
		ChildStderr:   childOut.Stderr,
	}
}

// ReportFilename builds the canonical report filename for a crash,
// matching ^afltriage_[A-Za-z0-9._-]+_[0-9a-f]{8}\.txt$.
func ReportFilename(r CrashReport) string {
	short := r.Stackhash
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("afltriage_%s_%s.txt", r.TerseHeadline, short)
}

func headlineFor(cc model.CrashContext) string {
	frame := crashingFrame(cc.PrimaryThread)
	where := "<unknown>"
	if frame != nil {
		where = frameLabel(*frame)
	}
	return fmt.Sprintf("%s in %s", cc.StopInfo.SignalName, where)
}

func terseHeadlineFor(cc model.CrashContext) string {
	frame := crashingFrame(cc.PrimaryThread)
	name := "unknown"
	if frame != nil && frame.Symbol != nil && frame.Symbol.Name != nil {
		name = *frame.Symbol.Name
	} else if frame != nil {
		name = frame.Module
	}
	return fmt.Sprintf("%s_%s", cc.StopInfo.SignalName, name)
}

func crashingFrame(t model.Thread) *model.Frame {
	if len(t.Backtrace) == 0 {
		return nil
	}
	return &t.Backtrace[0]
}

func frameLabel(f model.Frame) string {
	if f.Symbol != nil && f.Symbol.Name != nil {
		return *f.Symbol.Name
	}
	return f.ModuleAddress
}

// stackhash is a stable digest over the crashing thread's backtrace,
// keyed on each frame's module + relative address so that ASLR base
// differences across runs of the same bug still collide.
func stackhash(t model.Thread) string {
	var sb strings.Builder
	for _, f := range t.Backtrace {
		sb.WriteString(f.Module)
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatUint(f.RelativeAddress, 16))
		sb.WriteByte('\n')
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(sb.String()))
}

func formatRegisters(t model.Thread) string {
	var sb strings.Builder
	for _, r := range t.Registers {
		fmt.Fprintf(&sb, "%-6s %s\n", r.Name, r.Pretty)
	}
	return sb.String()
}

func formatBacktrace(t model.Thread) string {
	var sb strings.Builder
	for i, f := range t.Backtrace {
		fmt.Fprintf(&sb, "#%-3d %s", i, f.ModuleAddress)
		if f.Symbol != nil && f.Symbol.Name != nil {
			fmt.Fprintf(&sb, " in %s", *f.Symbol.Name)
			if f.Symbol.File != nil && f.Symbol.Line != nil {
				fmt.Fprintf(&sb, " at %s:%d", *f.Symbol.File, *f.Symbol.Line)
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

var asanHeaderRe = regexp.MustCompile(`(?m)^==\d+==ERROR: AddressSanitizer.*$`)

func extractAsanBody(stdout, stderr string) string {
	for _, s := range [...]string{stderr, stdout} {
		if loc := asanHeaderRe.FindStringIndex(s); loc != nil {
			return s[loc[0]:]
		}
	}
	return ""
}

// Render produces the report body in the requested format. childLines
// caps how many of the tail lines of child stdout/stderr are included
// (0 = all); pass -1 to omit child output entirely.
func Render(r CrashReport, format Format, childLines int, tail func(string, int) string) (string, error) {
	switch format {
	case FormatJSON:
		out := r
		if childLines < 0 {
			out.ChildStdout, out.ChildStderr = "", ""
		} else if tail != nil {
			out.ChildStdout = tail(out.ChildStdout, childLines)
			out.ChildStderr = tail(out.ChildStderr, childLines)
		}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return "", fmt.Errorf("report: marshal json: %w", err)
		}
		return string(b), nil

	case FormatMarkdown:
		var sb strings.Builder
		fmt.Fprintf(&sb, "# %s\n\n", r.Headline)
		fmt.Fprintf(&sb, "stackhash: `%s`\n\n", r.Stackhash)
		fmt.Fprintf(&sb, "## Registers\n\n```\n%s```\n\n", r.RegisterInfo)
		fmt.Fprintf(&sb, "## Backtrace\n\n```\n%s```\n\n", r.Backtrace)
		if r.AsanBody != "" {
			fmt.Fprintf(&sb, "## AddressSanitizer\n\n```\n%s\n```\n\n", r.AsanBody)
		}
		appendChildOutput(&sb, r, childLines, tail, true)
		return sb.String(), nil

	default: // FormatText
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s\n", r.Headline)
		fmt.Fprintf(&sb, "stackhash: %s\n\n", r.Stackhash)
		fmt.Fprintf(&sb, "Registers:\n%s\n", r.RegisterInfo)
		fmt.Fprintf(&sb, "Backtrace:\n%s\n", r.Backtrace)
		if r.AsanBody != "" {
			fmt.Fprintf(&sb, "AddressSanitizer:\n%s\n\n", r.AsanBody)
		}
		appendChildOutput(&sb, r, childLines, tail, false)
		return sb.String(), nil
	}
}

func appendChildOutput(sb *strings.Builder, r CrashReport, childLines int, tail func(string, int) string, markdown bool) {
	if childLines < 0 || tail == nil {
		return
	}
	out, errOut := tail(r.ChildStdout, childLines), tail(r.ChildStderr, childLines)
	if out == "" && errOut == "" {
		return
	}
	if markdown {
		fmt.Fprintf(sb, "## Child output\n\n**stdout**\n```\n%s```\n\n**stderr**\n```\n%s```\n", out, errOut)
	} else {
		fmt.Fprintf(sb, "Child stdout:\n%s\nChild stderr:\n%s\n", out, errOut)
	}
}
