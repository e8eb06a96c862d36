//go:build linux

// Package procrun spawns and supervises target/debugger child
// processes: capturing their stdout/stderr to memory, enforcing a
// wall-clock timeout with process-group kill escalation, and sampling
// resident memory for the profiler.
package procrun

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ErrTimedOut is returned by ExecuteCaptureOutputTimeout when the
// wall-clock deadline elapses before the child exits.
var ErrTimedOut = errors.New("procrun: timed out")

// gracePeriod bounds how long a killed child is given to honor SIGTERM
// before Runner escalates to SIGKILL: the same SIGTERM-then-SIGKILL
// escalation as the teacher's supervised-process teardown, with a
// shorter grace period.
const gracePeriod = 2 * time.Second

const drainBufInit = 64 * 1024
const drainBufMax = 8 * 1024 * 1024

// Result is the captured output and exit status of one child run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes child processes on behalf of the debugger driver and
// target profiler. It holds no per-child state, so one Runner is shared
// by all workers and may run several children concurrently; each call
// runs exactly one child.
type Runner struct {
	log *zap.Logger
}

// New constructs a Runner. log may be nil, in which case a no-op
// logger is used.
func New(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{log: log.Named("procrun")}
}

// ExecuteCaptureOutput runs argv to completion with no timeout and no
// stdin, capturing both output streams.
func (r *Runner) ExecuteCaptureOutput(argv []string) (Result, error) {
	return r.run(context.Background(), argv, nil)
}

// ExecuteCaptureOutputTimeout runs argv to completion or until
// timeoutMS elapses. On timeout the child's process group is killed
// and ErrTimedOut is returned. If stdin is non-empty it is written by a
// separate goroutine, concurrently with draining stdout/stderr, and
// the pipe is closed once the write returns.
func (r *Runner) ExecuteCaptureOutputTimeout(argv []string, timeoutMS int, stdin []byte) (Result, error) {
	if timeoutMS <= 0 {
		return Result{}, ErrTimedOut
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()
	return r.run(ctx, argv, stdin)
}

func (r *Runner) run(ctx context.Context, argv []string, stdin []byte) (Result, error) {
	if len(argv) == 0 {
		return Result{}, fmt.Errorf("procrun: empty argv")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGKILL}

	stdoutPipe, stderrPipe, stdinPipe, err := openPipes(cmd)
	if err != nil {
		return Result{}, fmt.Errorf("procrun: pipe setup: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("procrun: spawn failure: %w", err)
	}
	pid := cmd.Process.Pid

	var stdoutBuf, stderrBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(2)
	go drain(&wg, &mu, stdoutPipe, &stdoutBuf)
	go drain(&wg, &mu, stderrPipe, &stderrBuf)

	if len(stdin) > 0 {
		go func() {
			_, _ = stdinPipe.Write(stdin)
			_ = stdinPipe.Close()
		}()
	} else {
		_ = stdinPipe.Close()
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	select {
	case err := <-waitDone:
		wg.Wait()
		mu.Lock()
		res := Result{Stdout: stdoutBuf.String(), Stderr: stderrBuf.String()}
		mu.Unlock()
		res.ExitCode = exitCodeOf(err)
		return res, nil

	case <-ctx.Done():
		r.killGroup(pid)
		<-waitDone
		wg.Wait()
		return Result{}, ErrTimedOut
	}
}

// killGroup sends SIGTERM to the child's process group, escalating to
// SIGKILL after gracePeriod if the group hasn't exited.
func (r *Runner) killGroup(pid int) {
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		r.log.Debug("SIGTERM failed", zap.Int("pid", pid), zap.Error(err))
	}
	time.Sleep(gracePeriod)
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		r.log.Debug("SIGKILL failed (likely already reaped)", zap.Int("pid", pid), zap.Error(err))
	}
}

func drain(wg *sync.WaitGroup, mu *sync.Mutex, r io.Reader, dst *strings.Builder) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, drainBufInit), drainBufMax)
	for sc.Scan() {
		mu.Lock()
		dst.WriteString(sc.Text())
		dst.WriteByte('\n')
		mu.Unlock()
	}
}

func openPipes(cmd *exec.Cmd) (io.ReadCloser, io.ReadCloser, io.WriteCloser, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		if cerr := closeAll(stdout); cerr != nil {
			err = multierr.Append(err, cerr)
		}
		return nil, nil, nil, fmt.Errorf("stderr pipe: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		if cerr := closeAll(stdout, stderr); cerr != nil {
			err = multierr.Append(err, cerr)
		}
		return nil, nil, nil, fmt.Errorf("stdin pipe: %w", err)
	}
	return stdout, stderr, stdin, nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var eerr *exec.ExitError
	if errors.As(err, &eerr) {
		return eerr.ExitCode()
	}
	return -1
}

// PeakRSSKB returns, in kilobytes, the peak resident set size of the
// largest terminated and waited-for descendant of the current process
// since process start (getrusage RUSAGE_CHILDREN). The current
// process's own RSS is not included, and descendants that are still
// running are not reflected here; a live child's RSS can be sampled
// directly via ChildRSSKB while the child is alive.
func (r *Runner) PeakRSSKB() (int64, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_CHILDREN, &ru); err != nil {
		return 0, fmt.Errorf("procrun: getrusage: %w", err)
	}
	// Maxrss is already in kilobytes on Linux.
	return int64(ru.Maxrss), nil
}

// ChildRSSKB samples the current resident set size, in kilobytes, of a
// still-running child process by PID. The profiler does not call it; it
// measures through PeakRSSKB.
func ChildRSSKB(pid int) (int64, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, fmt.Errorf("procrun: open process %d: %w", pid, err)
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return 0, fmt.Errorf("procrun: memory info for %d: %w", pid, err)
	}
	return int64(info.RSS / 1024), nil
}

// AvailableMemoryKB is a best-effort query of system free+reclaimable
// memory. ok is false when the query is unsupported on this platform.
func (r *Runner) AvailableMemoryKB() (kb int64, ok bool) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		r.log.Debug("available memory query failed", zap.Error(err))
		return 0, false
	}
	return int64(vm.Available / 1024), true
}

// closeAll is a small helper used by callers that open several
// io.Closer resources and want every close error reported, not just
// the first.
func closeAll(closers ...io.Closer) error {
	var err error
	for _, c := range closers {
		if c == nil {
			continue
		}
		err = multierr.Append(err, c.Close())
	}
	return err
}
