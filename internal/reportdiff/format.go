package reportdiff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders the diff as human-readable text, grouped by what a
// reader acts on first: regressions, then fixes, then roster churn.
func FormatText(r *Result) string {
	if !r.HasChanges {
		return fmt.Sprintf("Report diff: %s → %s\n\nNo changes detected.\n", r.OldPath, r.NewPath)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Report diff: %s → %s\n", r.OldPath, r.NewPath)
	fmt.Fprintf(&b, "  runs %s → %s\n", r.OldRun, r.NewRun)

	if len(r.ParticipantsAdded) > 0 || len(r.ParticipantsRemoved) > 0 {
		b.WriteString("\n  Roster:\n")
		for _, n := range r.ParticipantsAdded {
			fmt.Fprintf(&b, "    + %s\n", n)
		}
		for _, n := range r.ParticipantsRemoved {
			fmt.Fprintf(&b, "    - %s\n", n)
		}
	}

	sections := []struct {
		title string
		types map[string]bool
	}{
		{"Regressions:", map[string]bool{"broke": true}},
		{"Fixed:", map[string]bool{"fixed": true}},
		{"Still failing, differently:", map[string]bool{"changed": true}},
		{"Cases added/removed:", map[string]bool{"added": true, "removed": true}},
	}
	for _, s := range sections {
		var lines []string
		for _, c := range r.Changes {
			if s.types[c.Type] {
				lines = append(lines, c.label())
			}
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n  %s\n", s.title)
		for _, line := range lines {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}

	fmt.Fprintf(&b, "\n  Summary: %d/%d passed → %d/%d passed\n",
		r.OldSummary.Passed, r.OldSummary.Total,
		r.NewSummary.Passed, r.NewSummary.Total)
	return b.String()
}

// FormatJSON renders the diff as JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal diff: %w", err)
	}
	return string(data), nil
}
