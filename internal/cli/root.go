package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/smlab/smconform/internal/observability"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "smconform",
	Short: "Cross-implementation conformance harness for SM2, SM3 and SM4",
	Long: "Drives independent SM2/SM3/SM4 implementations through one JSON contract\n" +
		"and checks that they agree with each other: identical digests, ciphertext\n" +
		"one side wrote and the other can read, signatures that verify across\n" +
		"implementations.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		observability.InitLogger("smconform", verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
