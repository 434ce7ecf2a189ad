package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/smlab/smconform/internal/invoke"
	"github.com/smlab/smconform/internal/registry"
	"github.com/smlab/smconform/internal/report"
	"github.com/smlab/smconform/internal/watcher"
)

var (
	watchRoster    string
	watchRoot      string
	watchFixtures  string
	watchTimeout   time.Duration
	watchWorkers   int
	watchDB        string
	watchSkipProbe bool
	watchPoll      bool
	watchInterval  time.Duration
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchRoster, "participants", "", "Path to participants YAML (default: scan --root)")
	watchCmd.Flags().StringVar(&watchRoot, "root", registry.DefaultRoot, "Directory watched for wrapper changes")
	watchCmd.Flags().StringVar(&watchFixtures, "fixtures", "", "Path to fixtures YAML (optional)")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", invoke.DefaultTimeout, "Per-invocation timeout")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 1, "Number of cases executed concurrently")
	watchCmd.Flags().StringVar(&watchDB, "db", "", "Save each run to this history database")
	watchCmd.Flags().BoolVar(&watchSkipProbe, "skip-probe", false, "Skip the liveness probe during discovery")
	watchCmd.Flags().BoolVar(&watchPoll, "poll", false, "Poll for changes instead of using fsnotify")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Polling interval (with --poll)")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rerun the matrix whenever a wrapper changes",
	Long: "Runs the matrix once, then watches the wrapper root and reruns after\n" +
		"every change. Useful while porting an implementation: save, see the\n" +
		"cross-checks go green. Stop with Ctrl-C.",
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	params := runParams{
		roster:    watchRoster,
		root:      watchRoot,
		fixtures:  watchFixtures,
		timeout:   watchTimeout,
		workers:   watchWorkers,
		skipProbe: watchSkipProbe,
		db:        watchDB,
	}

	once := func() {
		rep, err := executeRun(ctx, params)
		if err != nil {
			log.Error().Err(err).Msg("run failed")
			return
		}
		fmt.Print(report.FormatText(rep))
	}

	once()

	rerun := func(changed []string) {
		if ctx.Err() != nil {
			return
		}
		log.Info().Int("files", len(changed)).Str("first", changed[0]).Msg("change detected, rerunning")
		once()
	}

	if watchPoll {
		return watcher.NewPoll(watchRoot, rerun, watchInterval).Run(ctx)
	}
	return watcher.New(watchRoot, rerun).Run(ctx)
}
