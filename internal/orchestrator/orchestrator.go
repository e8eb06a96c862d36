// Package orchestrator wires the classifier, profiler, debugger driver,
// aggregator, and report formatter into one triage run: sanity-check
// the environment, plan the work, fan it out over a bounded worker
// pool, and summarize the outcome.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"afltriage-go/internal/aggregate"
	"afltriage-go/internal/argvsub"
	"afltriage-go/internal/classify"
	"afltriage-go/internal/fsutil"
	"afltriage-go/internal/gdbdriver"
	"afltriage-go/internal/model"
	"afltriage-go/internal/procrun"
	"afltriage-go/internal/profiler"
	"afltriage-go/internal/report"
)

// Summary is the final tally of a completed run.
type Summary struct {
	RunID            string
	Counts           aggregate.Counts
	UniqueSignatures int
	UniqueErrors     []aggregate.UniqueError
}

// Orchestrator holds the long-lived collaborators a run needs; one
// Orchestrator is constructed per process invocation.
type Orchestrator struct {
	log    *zap.Logger
	runner *procrun.Runner
	driver *gdbdriver.Driver
	prof   *profiler.Profiler
}

// New wires an Orchestrator from its collaborators.
func New(log *zap.Logger, runner *procrun.Runner, driver *gdbdriver.Driver) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		log:    log.Named("orchestrator"),
		runner: runner,
		driver: driver,
		prof:   profiler.New(log, runner, driver),
	}
}

// Run executes one full triage run against cfg.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (Summary, error) {
	runID := uuid.NewString()
	log := o.log.With(zap.String("run_id", runID))

	if err := sanityCheck(cfg, o.driver, log); err != nil {
		return Summary{}, err
	}

	testcases, err := o.plan(cfg, log)
	if err != nil {
		return Summary{}, err
	}
	if len(testcases) == 0 {
		return Summary{}, fmt.Errorf("orchestrator: no test cases found in %v", cfg.Inputs)
	}

	workers := cfg.Jobs
	if !cfg.SkipProfile || cfg.ProfileOnly {
		prof, err := o.prof.Profile(cfg.TargetArgv, testcases[0], cfg.TimeoutMS)
		if err != nil {
			return Summary{}, fmt.Errorf("orchestrator: profiling: %w", err)
		}
		if prof.Outcome.Kind == model.OutcomeError {
			return Summary{}, fmt.Errorf("orchestrator: seed test case failed to triage during profiling: %w", prof.Outcome.Err)
		}
		log.Info("profiled seed test case",
			zap.Duration("target_time", prof.TargetTime), zap.Duration("debugger_time", prof.DebuggerTime),
			zap.Int64("target_rss_kb", prof.TargetRSSKB), zap.Int64("debugger_rss_kb", prof.DebuggerRSSKB),
			zap.Float64("time_overhead", prof.TimeOverhead), zap.Float64("mem_overhead", prof.MemOverhead))

		if cfg.ProfileOnly {
			return Summary{RunID: runID}, nil
		}

		if workers == 0 {
			if avail, ok := o.prof.AvailableMemoryKB(); ok {
				workers = profiler.MaxWorkers(prof.DebuggerRSSKB, avail)
			} else {
				workers = 1
			}
			log.Info("autotuned worker count", zap.Int("workers", workers))
		}
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(testcases) {
		workers = len(testcases)
	}

	agg := aggregate.New()
	sem := semaphore.NewWeighted(int64(workers))

	for _, tc := range testcases {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		tc := tc
		go func() {
			defer sem.Release(1)
			o.triageOne(cfg, tc, agg, log)
		}()
	}
	// Drain: acquiring the full weight blocks until every goroutine has
	// released, i.e. every test case has completed.
	_ = sem.Acquire(ctx, int64(workers))

	counts := agg.Snapshot()
	summary := Summary{
		RunID:            runID,
		Counts:           counts,
		UniqueSignatures: agg.SignatureCount(),
		UniqueErrors:     agg.UniqueErrors(),
	}
	o.logFinalSummary(log, len(testcases), summary)
	return summary, nil
}

// plan classifies and enumerates every input path into a flat,
// stably-ordered test-case list.
func (o *Orchestrator) plan(cfg Config, log *zap.Logger) ([]model.Testcase, error) {
	var all []model.Testcase
	for _, in := range cfg.Inputs {
		kind, err := classify.Classify(in)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: classify %s: %w", in, err)
		}
		if kind == model.InputMissing {
			log.Warn("input path does not exist, skipping", zap.String("path", in))
			continue
		}
		tcs, err := classify.Enumerate(in, kind)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: enumerate %s: %w", in, err)
		}
		all = append(all, tcs...)
	}
	return all, nil
}

// triageOne runs one test case through the debugger driver and routes
// its outcome to the aggregator and, for new crash signatures, the
// report writer.
func (o *Orchestrator) triageOne(cfg Config, tc model.Testcase, agg *aggregate.State, log *zap.Logger) {
	argv := argvsub.Substitute(cfg.TargetArgv, tc.Path)
	var stdinFile *string
	if cfg.UseStdin {
		stdinFile = &tc.Path
	}

	outcome := o.driver.TriageProgram(argv, stdinFile, cfg.Debug, cfg.TimeoutMS)

	switch outcome.Kind {
	case model.OutcomeNoCrash:
		agg.RecordNoCrash()
		log.Info("no crash", zap.String("testcase", tc.Path))

	case model.OutcomeTimeout:
		agg.RecordTimeout()
		log.Warn("test case timed out", zap.String("testcase", tc.Path))

	case model.OutcomeError:
		agg.RecordError(outcome.Err)
		log.Error("failed to triage test case", zap.String("testcase", tc.Path), zap.Error(outcome.Err))

	case model.OutcomeCrash:
		cr := report.Build(outcome.CrashContext, outcome.ChildOutput)
		if agg.RecordCrash(cr.Stackhash) {
			log.Debug("duplicate crash signature suppressed",
				zap.String("testcase", tc.Path), zap.String("stackhash", cr.Stackhash))
			return
		}
		o.writeReport(cfg, tc, cr, log)
	}
}

func (o *Orchestrator) writeReport(cfg Config, tc model.Testcase, cr report.CrashReport, log *zap.Logger) {
	childLines := -1
	if cfg.ChildOutput {
		childLines = cfg.ChildOutputLines
	}
	body, err := report.Render(cr, cfg.OutputFormat, childLines, fsutil.TailLines)
	if err != nil {
		log.Error("failed to render report", zap.String("testcase", tc.Path), zap.Error(err))
		return
	}

	filename := report.ReportFilename(cr)
	if err := fsutil.WriteReport(cfg.OutputDir, filename, body); err != nil {
		log.Error("failed to write report", zap.String("testcase", tc.Path), zap.Error(err))
		return
	}
	if cfg.OutputDir != "-" {
		log.Info("new crash", zap.String("testcase", tc.Path), zap.String("report", filepath.Join(cfg.OutputDir, filename)))
	}
}

func (o *Orchestrator) logFinalSummary(log *zap.Logger, total int, s Summary) {
	log.Info("triage complete",
		zap.Int("total", total),
		zap.Int("crashed", s.Counts.Crashed), zap.Int("unique_crashes", s.UniqueSignatures),
		zap.Int("no_crash", s.Counts.NoCrash), zap.Int("timed_out", s.Counts.TimedOut), zap.Int("errored", s.Counts.Errored))

	if s.Counts.Errored > 0 && s.Counts.Errored == total {
		log.Warn("every test case errored; check the target binary and debugger setup")
	} else if s.Counts.TimedOut > 0 && s.Counts.TimedOut == total {
		log.Warn("every test case timed out; consider raising --timeout")
	} else if s.Counts.Crashed == 0 {
		log.Warn("no crashes found across all test cases")
	}

	for _, ue := range s.UniqueErrors {
		log.Warn("recurring triage error", zap.String("kind", ue.Err.Kind.String()), zap.String("message", ue.Err.Message), zap.Int("count", ue.Count))
	}
}
