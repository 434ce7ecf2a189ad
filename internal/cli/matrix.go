package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smlab/smconform/internal/fixtures"
	"github.com/smlab/smconform/internal/matrix"
	"github.com/smlab/smconform/internal/registry"
)

var (
	matrixRoster    string
	matrixRoot      string
	matrixFixtures  string
	matrixSkipProbe bool
	matrixFormat    string
)

func init() {
	rootCmd.AddCommand(matrixCmd)
	matrixCmd.Flags().StringVar(&matrixRoster, "participants", "", "Path to participants YAML (default: scan --root)")
	matrixCmd.Flags().StringVar(&matrixRoot, "root", registry.DefaultRoot, "Directory scanned for wrappers when no roster is given")
	matrixCmd.Flags().StringVar(&matrixFixtures, "fixtures", "", "Path to fixtures YAML (optional)")
	matrixCmd.Flags().BoolVar(&matrixSkipProbe, "skip-probe", false, "Skip the liveness probe")
	matrixCmd.Flags().StringVarP(&matrixFormat, "format", "f", "text", "Output format (text|json)")
}

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Print the generated test matrix without executing it",
	Long: "Generates the deterministic case list for the discovered participants.\n" +
		"The same roster and fixtures always produce the same matrix, so the\n" +
		"output is diffable across machines.",
	RunE: runMatrix,
}

func runMatrix(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fx, err := fixtures.Load(matrixFixtures)
	if err != nil {
		return err
	}
	reg, err := registry.Discover(ctx, registry.Options{
		ConfigPath: matrixRoster,
		Root:       matrixRoot,
		SkipProbe:  matrixSkipProbe,
		ProbeData:  fx.Hash.Data,
	})
	if err != nil {
		return err
	}

	cases := matrix.Generate(reg.Participants(), fx)

	if matrixFormat == "json" {
		out, err := json.MarshalIndent(cases, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("%d cases for %d participants\n", len(cases), len(reg.Participants()))
	for _, c := range cases {
		fmt.Printf("  %3d  %s\n", c.Index, c.ID)
	}
	return nil
}
