package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/smlab/smconform/internal/executor"
)

// FormatText renders a report as human-readable text.
func FormatText(r *Report) string {
	var b strings.Builder

	header := fmt.Sprintf("Conformance run %s — %d participants", r.RunID, len(r.Participants))
	fmt.Fprintln(&b, header)
	fmt.Fprintln(&b, strings.Repeat("═", len([]rune(header))))

	if len(r.Participants) > 0 {
		fmt.Fprintf(&b, "Participants: %s\n", strings.Join(r.Participants, ", "))
	} else {
		fmt.Fprintln(&b, "Participants: none")
	}
	for _, ex := range r.Excluded {
		fmt.Fprintf(&b, "  EXCLUDED  %-12s %s\n", ex.Participant.Name, ex.Reason)
	}

	for _, fs := range r.Families {
		status := "PASS"
		if fs.Failed > 0 || fs.TimedOut > 0 {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "  %-30s %d/%-4d %s\n", string(fs.Family), fs.Passed, fs.Total, status)

		for _, res := range r.Results {
			if res.Case.Family != fs.Family || res.Status == executor.StatusPassed {
				continue
			}
			id := res.Case.ID
			if len(id) > 40 {
				id = id[:37] + "..."
			}
			fmt.Fprintf(&b, "    %-9s %-40s %s\n", strings.ToUpper(string(res.Status)), id, res.Detail)
		}
	}

	fmt.Fprintln(&b, strings.Repeat("─", len([]rune(header))))

	status := "PASS"
	if !r.Clean() {
		status = "FAIL"
	}
	fmt.Fprintf(&b, "Result: %s (%d/%d passed", status, r.Summary.Passed, r.Summary.Total)
	if r.Summary.TimedOut > 0 {
		fmt.Fprintf(&b, ", %d timed out", r.Summary.TimedOut)
	}
	if r.Summary.Skipped > 0 {
		fmt.Fprintf(&b, ", %d skipped", r.Summary.Skipped)
	}
	b.WriteString(")\n")

	return b.String()
}

// FormatJSON renders a report as JSON.
func FormatJSON(r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data), nil
}

// WriteFile persists the JSON report atomically: a partial write can never
// shadow a previous complete report.
func WriteFile(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp report: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadFile loads a report previously persisted with WriteFile.
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}
