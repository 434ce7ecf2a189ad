package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smlab/smconform/internal/fixtures"
)

var initFixturesOutput string

func init() {
	rootCmd.AddCommand(initFixturesCmd)
	initFixturesCmd.Flags().StringVarP(&initFixturesOutput, "output", "o", "fixtures.yaml", "Where to write the fixtures file")
}

var initFixturesCmd = &cobra.Command{
	Use:   "init-fixtures",
	Short: "Generate a default fixtures.yaml with comments",
	Long: "Creates a fixtures file with the default test vectors.\n" +
		"Edit it to pin expected digests, change the cipher mode or supply a\n" +
		"fixed SM2 key pair.",
	RunE: runInitFixtures,
}

func runInitFixtures(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(initFixturesOutput); err == nil {
		return fmt.Errorf("%s already exists", initFixturesOutput)
	}

	if err := os.WriteFile(initFixturesOutput, []byte(fixtures.DefaultYAML()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", initFixturesOutput, err)
	}

	fmt.Printf("Created %s\n", initFixturesOutput)
	return nil
}
