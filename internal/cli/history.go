package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smlab/smconform/internal/history"
	"github.com/smlab/smconform/internal/report"
)

var (
	historyDB         string
	historyLimit      int
	historyListFormat string
	historyShowFormat string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.PersistentFlags().StringVar(&historyDB, "db", "", "History database path (default ~/.smconform/history.db)")

	historyCmd.AddCommand(historyListCmd)
	historyListCmd.Flags().IntVar(&historyLimit, "limit", history.DefaultListLimit, "Maximum number of runs to list")
	historyListCmd.Flags().StringVarP(&historyListFormat, "format", "f", "text", "Output format (text|json)")

	historyCmd.AddCommand(historyShowCmd)
	historyShowCmd.Flags().StringVarP(&historyShowFormat, "format", "f", "text", "Output format (text|json)")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect saved runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the full report of one saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func historyPath() (string, error) {
	if historyDB != "" {
		return historyDB, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".smconform")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return filepath.Join(dir, "history.db"), nil
}

func openHistory() (*history.Store, error) {
	path, err := historyPath()
	if err != nil {
		return nil, err
	}
	return history.Open(path)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(ctx, historyLimit)
	if err != nil {
		return err
	}

	if historyListFormat == "json" {
		out, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-36s %-20s %-6s %s\n", "RUN ID", "STARTED", "RESULT", "SUMMARY")
	for _, r := range runs {
		result := "PASS"
		if !r.Clean {
			result = "FAIL"
		}
		fmt.Printf("%-36s %-20s %-6s %d/%d passed\n",
			r.RunID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			result,
			r.Summary.Passed,
			r.Summary.Total,
		)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	rep, err := store.Load(ctx, args[0])
	if err != nil {
		return err
	}

	if historyShowFormat == "json" {
		out, err := report.FormatJSON(rep)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(report.FormatText(rep))
	return nil
}
