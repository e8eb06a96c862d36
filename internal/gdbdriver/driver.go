// Package gdbdriver composes and runs the gdb invocation that triages
// one test case, and decodes its framed, marker-delimited output into
// a typed model.TriageOutcome.
package gdbdriver

import (
	"fmt"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"afltriage-go/internal/marker"
	"afltriage-go/internal/model"
	"afltriage-go/internal/procrun"
	"afltriage-go/internal/triagescript"
	"afltriage-go/pkg/jsonx"
)

// MinTimeoutMS is the threshold below which the orchestrator should
// warn the user that a timeout is unreasonably aggressive.
const MinTimeoutMS = 100

// DefaultTimeoutMS is used when the caller does not specify one.
const DefaultTimeoutMS = 60000

// Driver composes gdb invocations and decodes their output. One Driver
// is constructed per orchestrator run and shared read-only across
// workers: its script file is immutable after construction.
type Driver struct {
	log        *zap.Logger
	runner     *procrun.Runner
	gdbPath    string
	scriptPath string
	ownsScript bool // true when scriptPath was materialized by us and must be removed on Close
}

// New constructs a Driver. If scriptOverride is empty, the embedded
// triage script is materialized to a temp file; the temp file is
// removed by Close. If scriptOverride is non-empty, that path is used
// verbatim and Close leaves it untouched — this is the "external
// script" capability the original left as dead code; here it is a
// real, fallible path instead of a panic branch.
func New(log *zap.Logger, runner *procrun.Runner, gdbPath, scriptOverride string) (*Driver, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if gdbPath == "" {
		gdbPath = "gdb"
	}

	d := &Driver{log: log.Named("gdbdriver"), runner: runner, gdbPath: gdbPath}

	if scriptOverride != "" {
		if _, err := os.Stat(scriptOverride); err != nil {
			return nil, fmt.Errorf("gdbdriver: external script path: %w", err)
		}
		d.scriptPath = scriptOverride
		return d, nil
	}

	f, err := os.CreateTemp("", "afltriage-script-*.py")
	if err != nil {
		return nil, fmt.Errorf("gdbdriver: materialize script: %w", err)
	}
	if _, err := f.Write(triagescript.Source); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("gdbdriver: write script: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("gdbdriver: close script: %w", err)
	}

	d.scriptPath = f.Name()
	d.ownsScript = true
	return d, nil
}

// Close removes the materialized temp script file, if this Driver
// owns one.
func (d *Driver) Close() error {
	if !d.ownsScript {
		return nil
	}
	var err error
	if rmErr := os.Remove(d.scriptPath); rmErr != nil && !os.IsNotExist(rmErr) {
		err = multierr.Append(err, fmt.Errorf("gdbdriver: remove script: %w", rmErr))
	}
	return err
}

// HasSupportedGdb runs a minimal batch session that prints the
// debugger's version and the triage script's runtime version, each
// prefixed on its own line, and reports whether both were observed.
// Errors are logged at debug level and treated as "unsupported", not
// fatal to the Driver.
func (d *Driver) HasSupportedGdb() bool {
	argv := newArgvBuilder(d.gdbPath).
		WithFlag("--nx").
		WithFlag("--batch").
		WithFlag("-q").
		WithEx("python import gdb; print('V:' + gdb.VERSION.split(chr(10))[0])").
		WithEx("source " + d.scriptPath).
		WithEx("afltriage-version").
		BuildArgv()

	res, err := d.runner.ExecuteCaptureOutput(argv)
	if err != nil {
		d.log.Debug("gdb capability probe failed to execute", zap.Error(err))
		return false
	}

	hasVersion := strings.Contains(res.Stdout, "V:")
	hasScript := strings.Contains(res.Stdout, "P:")
	if !hasVersion || !hasScript {
		d.log.Debug("gdb capability probe missing markers",
			zap.Bool("has_version", hasVersion), zap.Bool("has_script", hasScript),
			zap.String("stdout", res.Stdout))
		return false
	}
	return true
}

// TriageProgram runs the target once under the debugger and decodes
// the result. progArgv is the full target argv (argv[0] included,
// already @@-substituted by the caller). If stdinFile is non-nil, the
// target's stdin is redirected from that path inside gdb's "run"
// command instead of relying on an @@ file placeholder; the "run"
// command then repeats progArgv[1:] before the redirection, because
// arguments given to "run" replace those set by --args.
func (d *Driver) TriageProgram(progArgv []string, stdinFile *string, rawOutput bool, timeoutMS int) model.TriageOutcome {
	runCmd := "run"
	if stdinFile != nil {
		parts := []string{"run"}
		for i := 1; i < len(progArgv); i++ {
			parts = append(parts, shQuote(progArgv[i]))
		}
		parts = append(parts, fmt.Sprintf(`< "%s"`, strings.ReplaceAll(*stdinFile, `"`, `\"`)))
		runCmd = strings.Join(parts, " ")
	}

	b := newArgvBuilder(d.gdbPath).
		WithFlag("--nx").
		WithFlag("--batch").
		WithFlag("-q").
		WithEx(pyEmitBoth(marker.ChildOutput.Start)).
		WithEx("set logging file /dev/null").
		WithEx("set logging redirect on").
		WithEx("set logging on").
		WithEx(runCmd).
		WithEx("set logging redirect off").
		WithEx("set logging off").
		WithEx(pyEmitBoth(marker.ChildOutput.End)).
		WithEx(pyEmitBoth(marker.Backtrace.Start)).
		WithEx("source " + d.scriptPath).
		WithEx("afltriage-triage").
		WithEx(pyEmitBoth(marker.Backtrace.End)).
		WithTargetArgs(progArgv)

	argv := b.BuildArgv()

	res, err := d.runner.ExecuteCaptureOutputTimeout(argv, timeoutMS, nil)

	if rawOutput {
		d.log.Info("raw debugger invocation", zap.String("argv", b.BuildString()))
		d.log.Info("raw debugger output", zap.String("dump", spew.Sdump(res)))
	}

	if err != nil {
		if err == procrun.ErrTimedOut {
			return model.TriageOutcome{Kind: model.OutcomeTimeout}
		}
		return errOutcome(model.TriageError{
			Kind:    model.ErrCommand,
			Message: "Failed to execute",
			Details: []string{err.Error()},
		})
	}

	childStdout, err := marker.Extract(res.Stdout, marker.ChildOutput)
	if err != nil {
		return errOutcome(model.TriageError{Kind: model.ErrCommand, Message: "Could not extract child STDOUT", Details: []string{err.Error()}})
	}
	childStderr, err := marker.Extract(res.Stderr, marker.ChildOutput)
	if err != nil {
		return errOutcome(model.TriageError{Kind: model.ErrCommand, Message: "Could not extract child STDERR", Details: []string{err.Error()}})
	}

	backtracePayload, err := marker.Extract(res.Stdout, marker.Backtrace)
	if err != nil {
		return errOutcome(model.TriageError{Kind: model.ErrCommand, Message: "Could not extract backtrace", Details: []string{err.Error()}})
	}
	diagPayload, err := marker.Extract(res.Stderr, marker.Backtrace)
	if err != nil {
		return errOutcome(model.TriageError{Kind: model.ErrCommand, Message: "Could not extract triage diagnostics", Details: []string{err.Error()}})
	}

	childOut := model.ChildOutput{Stdout: childStdout, Stderr: childStderr, DebuggerExitCode: res.ExitCode}

	if strings.TrimSpace(backtracePayload) == "" && strings.TrimSpace(diagPayload) != "" {
		return errOutcome(model.TriageError{
			Kind:    model.ErrCommand,
			Message: "Triage script emitted errors",
			Details: nonEmptyLines(diagPayload),
		})
	}

	var wire wireResult
	if err := jsonx.ParseJSONString(strings.TrimSpace(backtracePayload), &wire); err != nil {
		return errOutcome(model.TriageError{Kind: model.ErrCommand, Message: "Failed to parse triage script output", Details: []string{err.Error()}})
	}

	if wire.Result == resultSuccess && wire.Context != nil {
		return model.TriageOutcome{Kind: model.OutcomeCrash, CrashContext: wire.Context.toModel(), ChildOutput: childOut}
	}
	return model.TriageOutcome{Kind: model.OutcomeNoCrash, ChildOutput: childOut}
}

func errOutcome(e model.TriageError) model.TriageOutcome {
	return model.TriageOutcome{Kind: model.OutcomeError, Err: e}
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
