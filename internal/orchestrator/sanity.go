package orchestrator

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"afltriage-go/internal/argvsub"
	"afltriage-go/internal/gdbdriver"
)

var asanAbortRe = regexp.MustCompile(`abort_on_error=(1|true)`)

// sanityCheck performs the startup checks §4.6 requires before any
// work begins: the target binary must be runnable, the debugger must
// pass its capability probe, and the ASan/libc environment must be
// fixed up (or, for a user-supplied ASAN_OPTIONS missing
// abort_on_error, rejected outright). Environment variables are
// mutated exactly once here, before any worker spawns, per §5's
// "global state is set exactly once during startup" invariant.
func sanityCheck(cfg Config, driver *gdbdriver.Driver, log *zap.Logger) error {
	if len(cfg.TargetArgv) == 0 {
		return fmt.Errorf("sanity check: no target command given")
	}
	if !cfg.UseStdin && argvsub.Count(cfg.TargetArgv) == 0 {
		return fmt.Errorf("sanity check: target argv has no @@ placeholder and --stdin was not given")
	}

	bin := cfg.TargetArgv[0]
	if strings.ContainsRune(bin, os.PathSeparator) {
		if info, err := os.Stat(bin); err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
			return fmt.Errorf("sanity check: target binary %q is not an executable file", bin)
		}
	} else if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("sanity check: target binary %q is not resolvable on PATH", bin)
	}

	if !driver.HasSupportedGdb() {
		return fmt.Errorf("sanity check: debugger does not support the triage script")
	}

	if err := fixupEnvironment(log); err != nil {
		return err
	}

	if cfg.TimeoutMS < gdbdriver.MinTimeoutMS {
		log.Warn("timeout is very aggressive and may produce spurious timeouts",
			zap.Int("timeout_ms", cfg.TimeoutMS), zap.Int("min_recommended_ms", gdbdriver.MinTimeoutMS))
	}

	return nil
}

// fixupEnvironment forces LIBC_FATAL_STDERR_=1 so libc aborts route
// through stderr where the debugger captures them, defaults
// ASAN_OPTIONS when unset (failing startup if a user-supplied value
// doesn't enable abort_on_error), and best-effort resolves
// ASAN_SYMBOLIZER_PATH.
func fixupEnvironment(log *zap.Logger) error {
	if err := os.Setenv("LIBC_FATAL_STDERR_", "1"); err != nil {
		return fmt.Errorf("sanity check: set LIBC_FATAL_STDERR_: %w", err)
	}

	if v, ok := os.LookupEnv("ASAN_OPTIONS"); ok {
		if !asanAbortRe.MatchString(v) {
			return fmt.Errorf("sanity check: ASAN_OPTIONS is set but does not enable abort_on_error=1|true")
		}
	} else {
		const def = "abort_on_error=1:allow_user_segv_handler=0:symbolize=1,detect_leaks=0"
		if err := os.Setenv("ASAN_OPTIONS", def); err != nil {
			return fmt.Errorf("sanity check: set ASAN_OPTIONS: %w", err)
		}
	}

	if _, ok := os.LookupEnv("ASAN_SYMBOLIZER_PATH"); !ok {
		if path, err := exec.LookPath("addr2line"); err == nil {
			_ = os.Setenv("ASAN_SYMBOLIZER_PATH", path)
		} else {
			log.Warn("addr2line not found on PATH; ASAN_SYMBOLIZER_PATH left unset")
		}
	}

	return nil
}
