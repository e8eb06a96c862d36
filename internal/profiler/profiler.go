// Package profiler measures a seed test case's resource footprint,
// bare and under the debugger, and derives a memory-safe worker count.
package profiler

import (
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"afltriage-go/internal/argvsub"
	"afltriage-go/internal/gdbdriver"
	"afltriage-go/internal/model"
	"afltriage-go/internal/procrun"
)

// Report is the result of profiling one seed test case.
type Report struct {
	TargetTime    time.Duration
	DebuggerTime  time.Duration
	TargetRSSKB   int64
	DebuggerRSSKB int64
	TimeOverhead  float64
	MemOverhead   float64
	// Outcome surfaces the seed's own triage result so the caller can
	// detect a fatal-before-triage condition (e.g. the target binary
	// itself cannot be executed) before committing to a full run.
	Outcome model.TriageOutcome
}

// Profiler runs the bare-vs-debugger comparison.
type Profiler struct {
	log    *zap.Logger
	runner *procrun.Runner
	driver *gdbdriver.Driver

	memQuery singleflight.Group
}

// New constructs a Profiler sharing the orchestrator's Runner and Driver.
func New(log *zap.Logger, runner *procrun.Runner, driver *gdbdriver.Driver) *Profiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Profiler{log: log.Named("profiler"), runner: runner, driver: driver}
}

// Profile runs targetArgv bare and under the debugger on seed, each
// bounded by timeoutMS, and reports the comparative resource figures.
func (p *Profiler) Profile(targetArgv []string, seed model.Testcase, timeoutMS int) (Report, error) {
	rssBefore, _ := p.runner.PeakRSSKB()
	start := time.Now()
	_, err := p.runner.ExecuteCaptureOutputTimeout(argvsub.Substitute(targetArgv, seed.Path), timeoutMS, nil)
	targetTime := time.Since(start)
	rssAfter, _ := p.runner.PeakRSSKB()
	targetRSS := clampFloor(rssAfter-rssBefore, 1)
	if err != nil {
		p.log.Debug("bare profiling run did not complete cleanly", zap.Error(err))
	}

	rssBefore, _ = p.runner.PeakRSSKB()
	start = time.Now()
	outcome := p.driver.TriageProgram(argvsub.Substitute(targetArgv, seed.Path), nil, false, timeoutMS)
	debuggerTime := time.Since(start)
	rssAfter, _ = p.runner.PeakRSSKB()
	debuggerRSS := clampFloor(rssAfter-rssBefore, 1)

	return Report{
		TargetTime:    targetTime,
		DebuggerTime:  debuggerTime,
		TargetRSSKB:   targetRSS,
		DebuggerRSSKB: debuggerRSS,
		TimeOverhead:  float64(debuggerTime) / float64(maxDuration(targetTime, time.Microsecond)),
		MemOverhead:   float64(debuggerRSS) / float64(targetRSS),
		Outcome:       outcome,
	}, nil
}

// AvailableMemoryKB is a singleflight-coalesced wrapper over the
// runner's system memory query: callers that overlap share one query.
// The orchestrator calls it once per run, only when autotuning the
// worker count.
func (p *Profiler) AvailableMemoryKB() (int64, bool) {
	v, err, _ := p.memQuery.Do("available-memory", func() (any, error) {
		kb, ok := p.runner.AvailableMemoryKB()
		if !ok {
			return int64(0), errNotSupported
		}
		return kb, nil
	})
	if err != nil {
		return 0, false
	}
	return v.(int64), true
}

var errNotSupported = &unsupportedErr{}

type unsupportedErr struct{}

func (*unsupportedErr) Error() string { return "profiler: available memory query unsupported" }

// MaxWorkers derives the memory-safe worker count: floor(available /
// debuggerRSS), capped at the CPU count, at least 1.
func MaxWorkers(debuggerRSSKB, availableKB int64) int {
	if debuggerRSSKB <= 0 {
		debuggerRSSKB = 1
	}
	byMemory := int(availableKB / debuggerRSSKB)
	if byMemory < 1 {
		byMemory = 1
	}
	if cpu := runtime.NumCPU(); byMemory > cpu {
		byMemory = cpu
	}
	return byMemory
}

func clampFloor(v, floor int64) int64 {
	if v < floor {
		return floor
	}
	return v
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

