package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smlab/smconform/internal/registry"
)

var (
	listRoster    string
	listRoot      string
	listSkipProbe bool
	listFormat    string
)

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listRoster, "participants", "", "Path to participants YAML (default: scan --root)")
	listCmd.Flags().StringVar(&listRoot, "root", registry.DefaultRoot, "Directory scanned for wrappers when no roster is given")
	listCmd.Flags().BoolVar(&listSkipProbe, "skip-probe", false, "Skip the liveness probe")
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "text", "Output format (text|json)")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Discover participants and show probe results",
	Long:  "Shows every implementation the harness would test, and why any candidate\nwas excluded by the liveness probe.",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := registry.Discover(ctx, registry.Options{
		ConfigPath: listRoster,
		Root:       listRoot,
		SkipProbe:  listSkipProbe,
	})
	if err != nil {
		return err
	}

	if listFormat == "json" {
		out, err := json.MarshalIndent(map[string]any{
			"participants": reg.Participants(),
			"excluded":     reg.Excluded(),
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	participants := reg.Participants()
	excluded := reg.Excluded()
	if len(participants) == 0 && len(excluded) == 0 {
		fmt.Println("No participants found.")
		return nil
	}

	fmt.Printf("%-12s %-10s %s\n", "NAME", "STATUS", "COMMAND")
	for _, p := range participants {
		fmt.Printf("%-12s %-10s %s\n", p.Name, "ok", strings.Join(p.Command, " "))
	}
	for _, ex := range excluded {
		fmt.Printf("%-12s %-10s %s (%s)\n", ex.Participant.Name, "excluded", strings.Join(ex.Participant.Command, " "), ex.Reason)
	}
	return nil
}
