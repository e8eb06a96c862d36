// Command afltriage triages a set of fuzzer-found crashing test cases
// against a target program under gdb, deduplicating crashes by stack
// signature and writing one report per unique crash.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"afltriage-go/internal/gdbdriver"
	"afltriage-go/internal/logging"
	"afltriage-go/internal/orchestrator"
	"afltriage-go/internal/procrun"
	"afltriage-go/internal/report"
	"afltriage-go/pkg/fmtt"
)

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg := orchestrator.Config{}
	var (
		outputFormat string
		logLevel     string
		showVersion  bool
	)

	root := &cobra.Command{
		Use:   "afltriage [flags] -- <target> [args...]",
		Short: "Triage fuzzer-found crashes against a target binary",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Println("afltriage", buildVersion())
				return nil
			}

			if !cmd.Flags().Changed("input") {
				return fmt.Errorf("required flag(s) \"input\" not set")
			}
			if !cmd.Flags().Changed("output") {
				return fmt.Errorf("required flag(s) \"output\" not set")
			}
			if cfg.ProfileOnly && cfg.SkipProfile {
				return fmt.Errorf("--profile-only and --skip-profile are mutually exclusive")
			}

			format, err := report.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			cfg.OutputFormat = format
			cfg.TargetArgv = args

			log, err := logging.New(logLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			runner := procrun.New(log)
			driver, err := gdbdriver.New(log, runner, cfg.GdbPath, cfg.TriageScript)
			if err != nil {
				return err
			}
			defer func() {
				if err := driver.Close(); err != nil {
					log.Warn("cleanup failed", zap.Error(err))
				}
			}()

			orch := orchestrator.New(log, runner, driver)
			if _, err := orch.Run(cmd.Context(), cfg); err != nil {
				return err
			}
			return nil
		},
		SilenceUsage: true,
	}

	flags := root.Flags()
	flags.StringSliceVarP(&cfg.Inputs, "input", "i", nil, "test case file, directory, or fuzzer output directory (repeatable)")
	flags.StringVarP(&cfg.OutputDir, "output", "o", "-", `directory to write reports to, or "-" for the terminal`)
	flags.IntVarP(&cfg.Jobs, "jobs", "j", 0, "number of concurrent triage workers (0 = autotune)")
	flags.IntVarP(&cfg.TimeoutMS, "timeout", "t", gdbdriver.DefaultTimeoutMS, "per-test-case timeout in milliseconds")
	flags.BoolVar(&cfg.UseStdin, "stdin", false, "feed the test case on the target's stdin instead of via @@")
	flags.BoolVar(&cfg.ProfileOnly, "profile-only", false, "profile the first test case and exit without triaging the rest")
	flags.BoolVar(&cfg.SkipProfile, "skip-profile", false, "skip the startup profiling pass and worker autotuning")
	flags.BoolVar(&cfg.Debug, "debug", false, "dump raw debugger invocations and output")
	flags.BoolVar(&cfg.ChildOutput, "child-output", false, "include the target's captured stdout/stderr in reports")
	flags.IntVar(&cfg.ChildOutputLines, "child-output-lines", 25, "number of trailing child output lines to include (0 = all)")
	flags.StringVar(&outputFormat, "output-format", "text", "report format: text, markdown, or json")
	flags.StringVar(&logLevel, "log-level", "info", "log verbosity: debug, info, warn, error")
	flags.StringVar(&cfg.GdbPath, "gdb-path", "", "path to the gdb binary (default: look up gdb on PATH)")
	flags.StringVar(&cfg.TriageScript, "triage-script", "", "external gdb triage script to use instead of the embedded one")
	flags.BoolVarP(&showVersion, "version", "v", false, "print the version and exit")

	if err := root.ExecuteContext(context.Background()); err != nil {
		if cfg.Debug {
			fmtt.PrintErrChainDebug(err)
		} else {
			fmt.Fprintln(os.Stderr, "afltriage:", err)
		}
		return 1
	}
	return 0
}
