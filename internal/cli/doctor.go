package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/smlab/smconform/internal/fixtures"
	"github.com/smlab/smconform/internal/registry"
)

var (
	doctorRoot     string
	doctorFixtures string
)

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVar(&doctorRoot, "root", registry.DefaultRoot, "Wrapper directory to check")
	doctorCmd.Flags().StringVar(&doctorFixtures, "fixtures", "", "Fixtures file to validate (optional)")
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the harness can find wrappers and their runtimes",
	RunE:  runDoctor,
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

// runtimes are the interpreters the conventional wrapper layout needs. The
// compiled Go wrapper runs directly and has no runtime requirement.
var runtimes = []string{"python3", "node", "php"}

func runDoctor(cmd *cobra.Command, args []string) error {
	var checks []checkResult

	// 1. Binary location and version.
	execPath, _ := os.Executable()
	if execPath != "" {
		checks = append(checks, checkResult{
			label:  "smconform binary",
			ok:     true,
			detail: fmt.Sprintf("%s (v%s)", execPath, version),
		})
	} else {
		checks = append(checks, checkResult{
			label:  "smconform binary",
			ok:     false,
			detail: "cannot determine executable path",
		})
	}

	// 2. Wrapper root.
	if info, err := os.Stat(doctorRoot); err == nil && info.IsDir() {
		checks = append(checks, checkResult{
			label:  "wrapper root",
			ok:     true,
			detail: doctorRoot,
		})
	} else {
		checks = append(checks, checkResult{
			label:  "wrapper root",
			ok:     false,
			detail: fmt.Sprintf("%s missing", doctorRoot),
			fix:    "smconform run --participants <roster.yaml>",
		})
	}

	// 3. Interpreter runtimes for the conventional wrappers.
	for _, rt := range runtimes {
		if path, err := exec.LookPath(rt); err == nil {
			checks = append(checks, checkResult{
				label:  rt,
				ok:     true,
				detail: path,
			})
		} else {
			checks = append(checks, checkResult{
				label:  rt,
				ok:     false,
				detail: "not on PATH",
				fix:    fmt.Sprintf("install %s, or drop that wrapper from the roster", rt),
			})
		}
	}

	// 4. Fixtures file, when named.
	if doctorFixtures != "" {
		if _, err := fixtures.Load(doctorFixtures); err == nil {
			checks = append(checks, checkResult{
				label:  "fixtures",
				ok:     true,
				detail: doctorFixtures,
			})
		} else {
			checks = append(checks, checkResult{
				label:  "fixtures",
				ok:     false,
				detail: err.Error(),
				fix:    "smconform init-fixtures",
			})
		}
	}

	// 5. History directory.
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, ".smconform")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			checks = append(checks, checkResult{
				label:  "history directory",
				ok:     true,
				detail: dir,
			})
		} else {
			checks = append(checks, checkResult{
				label:  "history directory",
				ok:     true,
				detail: "not created yet (first run --db or history command creates it)",
			})
		}
	}

	// Print results.
	hasFailures := false
	for _, c := range checks {
		mark := "✓" // ✓
		if !c.ok {
			mark = "✗" // ✗
			hasFailures = true
		}
		line := fmt.Sprintf("%s %-20s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			line += fmt.Sprintf("  ->  %s", c.fix)
		}
		fmt.Println(line)
	}

	if hasFailures {
		fmt.Println()
		fmt.Println("Some checks failed. A missing runtime only matters if that wrapper is in the roster.")
		return fmt.Errorf("doctor found issues")
	}

	fmt.Println()
	fmt.Println("All checks passed.")
	return nil
}
