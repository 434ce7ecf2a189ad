// Package reportdiff compares two run reports case by case. Because the
// matrix is deterministic, two runs over the same roster and fixtures line up
// one to one, and the interesting output is which cases changed verdict
// between them.
package reportdiff

import (
	"fmt"
	"sort"

	"github.com/smlab/smconform/internal/executor"
	"github.com/smlab/smconform/internal/report"
)

// CaseChange records one case whose verdict differs between the runs.
type CaseChange struct {
	// Type is "fixed" (non-passing to passing), "broke" (passing to
	// non-passing), "changed" (non-passing to a different non-passing
	// status), "added" or "removed" (case exists in only one run).
	Type   string `json:"type"`
	Case   string `json:"case"`
	Old    string `json:"old,omitempty"`
	New    string `json:"new,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Result holds the comparison of two run reports.
type Result struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
	OldRun  string `json:"old_run"`
	NewRun  string `json:"new_run"`

	ParticipantsAdded   []string `json:"participants_added,omitempty"`
	ParticipantsRemoved []string `json:"participants_removed,omitempty"`

	Changes []CaseChange `json:"changes,omitempty"`

	OldSummary report.Summary `json:"old_summary"`
	NewSummary report.Summary `json:"new_summary"`
	HasChanges bool           `json:"has_changes"`
}

// Diff compares two reports. Cases are matched by ID; roster differences are
// reported separately so a shrunk matrix is not misread as a regression.
func Diff(old, new *report.Report) *Result {
	r := &Result{
		OldRun:     old.RunID,
		NewRun:     new.RunID,
		OldSummary: old.Summary,
		NewSummary: new.Summary,
	}

	r.ParticipantsAdded, r.ParticipantsRemoved = diffRoster(old.Participants, new.Participants)

	oldByID := make(map[string]executor.Result, len(old.Results))
	for _, res := range old.Results {
		oldByID[res.Case.ID] = res
	}
	newByID := make(map[string]executor.Result, len(new.Results))
	for _, res := range new.Results {
		newByID[res.Case.ID] = res
	}

	// New run's generation order drives the listing.
	for _, res := range new.Results {
		prev, ok := oldByID[res.Case.ID]
		if !ok {
			r.Changes = append(r.Changes, CaseChange{
				Type: "added",
				Case: res.Case.ID,
				New:  string(res.Status),
			})
			continue
		}
		if prev.Status == res.Status {
			continue
		}
		r.Changes = append(r.Changes, CaseChange{
			Type:   changeType(prev.Status, res.Status),
			Case:   res.Case.ID,
			Old:    string(prev.Status),
			New:    string(res.Status),
			Detail: res.Detail,
		})
	}
	for _, res := range old.Results {
		if _, ok := newByID[res.Case.ID]; !ok {
			r.Changes = append(r.Changes, CaseChange{
				Type: "removed",
				Case: res.Case.ID,
				Old:  string(res.Status),
			})
		}
	}

	r.HasChanges = len(r.Changes) > 0 ||
		len(r.ParticipantsAdded) > 0 || len(r.ParticipantsRemoved) > 0
	return r
}

func changeType(old, new executor.Status) string {
	switch {
	case new == executor.StatusPassed:
		return "fixed"
	case old == executor.StatusPassed:
		return "broke"
	default:
		return "changed"
	}
}

func diffRoster(old, new []string) (added, removed []string) {
	oldSet := make(map[string]bool, len(old))
	for _, n := range old {
		oldSet[n] = true
	}
	newSet := make(map[string]bool, len(new))
	for _, n := range new {
		newSet[n] = true
	}
	for n := range newSet {
		if !oldSet[n] {
			added = append(added, n)
		}
	}
	for n := range oldSet {
		if !newSet[n] {
			removed = append(removed, n)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// Regressed reports whether any case went from passing to not passing.
// `smconform diff` exits nonzero on a regression, so the command can gate a
// wrapper upgrade the same way `run` gates a fresh tree.
func (r *Result) Regressed() bool {
	for _, c := range r.Changes {
		if c.Type == "broke" {
			return true
		}
	}
	return false
}

// label renders one change for the text formatter.
func (c CaseChange) label() string {
	switch c.Type {
	case "added":
		return fmt.Sprintf("%s (now %s)", c.Case, c.New)
	case "removed":
		return fmt.Sprintf("%s (was %s)", c.Case, c.Old)
	default:
		return fmt.Sprintf("%s  %s → %s", c.Case, c.Old, c.New)
	}
}
