package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smlab/smconform/internal/report"
	"github.com/smlab/smconform/internal/reportdiff"
)

var diffFormat string

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text", "Output format (text|json)")
}

var diffCmd = &cobra.Command{
	Use:   "diff <old.json> <new.json>",
	Short: "Compare two run reports and show which cases changed verdict",
	Long: "Loads two reports written by run --output and shows what moved between\n" +
		"them: regressions, fixes, roster churn. Exit code 1 when any case went\n" +
		"from passing to not passing, so upgrades can be gated on it.",
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	oldRep, err := report.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("load old report: %w", err)
	}
	newRep, err := report.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("load new report: %w", err)
	}

	result := reportdiff.Diff(oldRep, newRep)
	result.OldPath = args[0]
	result.NewPath = args[1]

	switch diffFormat {
	case "json":
		out, err := reportdiff.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(reportdiff.FormatText(result))
	}

	if result.Regressed() {
		os.Exit(1)
	}
	return nil
}
