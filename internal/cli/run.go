package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smlab/smconform/internal/executor"
	"github.com/smlab/smconform/internal/fixtures"
	"github.com/smlab/smconform/internal/history"
	"github.com/smlab/smconform/internal/invoke"
	"github.com/smlab/smconform/internal/matrix"
	"github.com/smlab/smconform/internal/registry"
	"github.com/smlab/smconform/internal/report"
	"github.com/smlab/smconform/internal/runlog"
)

var (
	runRoster    string
	runRoot      string
	runFixtures  string
	runTimeout   time.Duration
	runWorkers   int
	runFormat    string
	runOutput    string
	runDB        string
	runLogFile   string
	runSkipProbe bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runRoster, "participants", "", "Path to participants YAML (default: scan --root)")
	runCmd.Flags().StringVar(&runRoot, "root", registry.DefaultRoot, "Directory scanned for wrappers when no roster is given")
	runCmd.Flags().StringVar(&runFixtures, "fixtures", "", "Path to fixtures YAML (optional)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", invoke.DefaultTimeout, "Per-invocation timeout")
	runCmd.Flags().IntVar(&runWorkers, "workers", 1, "Number of cases executed concurrently")
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "text", "Output format (text|json)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Write the JSON report to this file")
	runCmd.Flags().StringVar(&runDB, "db", "", "Save the run to this history database")
	runCmd.Flags().StringVar(&runLogFile, "log", "", "Append per-case evidence to this hash-chained JSONL file")
	runCmd.Flags().BoolVar(&runSkipProbe, "skip-probe", false, "Skip the liveness probe during discovery")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the conformance matrix and report cross-implementation agreement",
	Long: "Discovers participants, generates the deterministic test matrix and\n" +
		"executes it against every implementation. Exit code 0 when nothing\n" +
		"failed or timed out, 1 otherwise.",
	RunE: runRun,
}

// runParams carries one run's settings so run and watch share the same path.
type runParams struct {
	roster    string
	root      string
	fixtures  string
	timeout   time.Duration
	workers   int
	skipProbe bool
	output    string
	db        string
	logFile   string
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep, err := executeRun(ctx, runParams{
		roster:    runRoster,
		root:      runRoot,
		fixtures:  runFixtures,
		timeout:   runTimeout,
		workers:   runWorkers,
		skipProbe: runSkipProbe,
		output:    runOutput,
		db:        runDB,
		logFile:   runLogFile,
	})
	if err != nil {
		return err
	}

	switch runFormat {
	case "json":
		out, err := report.FormatJSON(rep)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(report.FormatText(rep))
	}

	if !rep.Clean() {
		os.Exit(1)
	}
	return nil
}

// executeRun performs one full discovery-generate-execute-aggregate cycle.
func executeRun(ctx context.Context, p runParams) (*report.Report, error) {
	fx, err := fixtures.Load(p.fixtures)
	if err != nil {
		return nil, err
	}

	reg, err := registry.Discover(ctx, registry.Options{
		ConfigPath: p.roster,
		Root:       p.root,
		SkipProbe:  p.skipProbe,
		ProbeData:  fx.Hash.Data,
	})
	if err != nil {
		return nil, err
	}

	cases := matrix.Generate(reg.Participants(), fx)

	started := time.Now().UTC()
	runner := executor.NewRunner(executor.Config{
		Participants: reg.Participants(),
		Timeout:      p.timeout,
		Workers:      p.workers,
	})
	results := runner.Run(ctx, cases)

	rep := report.Aggregate(report.RunInfo{
		RunID:        report.NewRunID(),
		Participants: reg.Names(),
		Excluded:     reg.Excluded(),
		StartedAt:    started,
		FinishedAt:   time.Now().UTC(),
	}, results)

	if p.output != "" {
		if err := report.WriteFile(p.output, rep); err != nil {
			return nil, err
		}
	}
	if p.logFile != "" {
		if err := appendRunLog(p.logFile, rep); err != nil {
			return nil, err
		}
	}
	if p.db != "" {
		store, err := history.Open(p.db)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		if err := store.Save(ctx, rep); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

// appendRunLog chains the run's final verdicts onto the evidence log in
// generation order, after the hash cross-check has settled them.
func appendRunLog(path string, rep *report.Report) error {
	lg, err := runlog.Open(path)
	if err != nil {
		return err
	}
	defer lg.Close()

	for _, res := range rep.Results {
		entry := runlog.Entry{
			RunID:      rep.RunID,
			Case:       res.Case.ID,
			Family:     string(res.Case.Family),
			Source:     res.Case.Source,
			Target:     res.Case.Target,
			Status:     string(res.Status),
			Attempts:   res.Attempts,
			DurationMS: res.Duration.Milliseconds(),
			Detail:     res.Detail,
		}
		if err := lg.Record(entry); err != nil {
			return err
		}
	}
	return nil
}
