// Package report aggregates executor results into the persistent record of
// one run and renders it for people and machines.
package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smlab/smconform/internal/contract"
	"github.com/smlab/smconform/internal/executor"
	"github.com/smlab/smconform/internal/matrix"
	"github.com/smlab/smconform/internal/registry"
)

// Summary counts terminal statuses.
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	TimedOut int `json:"timed_out"`
	Skipped  int `json:"skipped"`
}

func (s *Summary) add(st executor.Status) {
	s.Total++
	switch st {
	case executor.StatusPassed:
		s.Passed++
	case executor.StatusFailed:
		s.Failed++
	case executor.StatusTimedOut:
		s.TimedOut++
	case executor.StatusSkipped:
		s.Skipped++
	}
}

// FamilySummary counts statuses within one family block.
type FamilySummary struct {
	Family matrix.Family `json:"family"`
	Summary
}

// Report is the full record of one conformance run. Results keep generation
// order, so two runs over the same inputs produce comparable reports.
type Report struct {
	RunID        string               `json:"run_id"`
	StartedAt    time.Time            `json:"started_at"`
	FinishedAt   time.Time            `json:"finished_at"`
	Participants []string             `json:"participants"`
	Excluded     []registry.Exclusion `json:"excluded,omitempty"`
	Summary      Summary              `json:"summary"`
	Families     []FamilySummary      `json:"families,omitempty"`
	Results      []executor.Result    `json:"results"`
}

// Clean reports whether the run earns exit code zero: nothing failed and
// nothing timed out. Skips do not taint a run.
func (r *Report) Clean() bool {
	return r.Summary.Failed == 0 && r.Summary.TimedOut == 0
}

// RunInfo carries run identity and roster facts into the report.
type RunInfo struct {
	RunID        string
	Participants []string
	Excluded     []registry.Exclusion
	StartedAt    time.Time
	FinishedAt   time.Time
}

// NewRunID returns a time-ordered unique run identifier.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Aggregate builds the report from terminal results. Hash-consistency cases
// are cross-compared here: the first passing digest in generation order is
// the reference, and any passing case that disagrees flips to failed. The
// results slice is taken over by the report.
func Aggregate(info RunInfo, results []executor.Result) *Report {
	crossCheckHashes(results)

	rep := &Report{
		RunID:        info.RunID,
		StartedAt:    info.StartedAt,
		FinishedAt:   info.FinishedAt,
		Participants: info.Participants,
		Excluded:     info.Excluded,
		Results:      results,
	}
	if rep.RunID == "" {
		rep.RunID = NewRunID()
	}

	for _, res := range results {
		rep.Summary.add(res.Status)
	}
	for _, fam := range matrix.Families {
		fs := FamilySummary{Family: fam}
		for _, res := range results {
			if res.Case.Family == fam {
				fs.add(res.Status)
			}
		}
		if fs.Total > 0 {
			rep.Families = append(rep.Families, fs)
		}
	}
	return rep
}

// crossCheckHashes enforces digest agreement per algorithm. Executor-level
// verdicts (well-formed reply, known-answer pin) are already in; this pass
// only demotes passing digests that disagree with the reference.
func crossCheckHashes(results []executor.Result) {
	type ref struct {
		digest string
		source string
	}
	refs := make(map[contract.Algorithm]ref)

	for i := range results {
		res := &results[i]
		if res.Case.Family != matrix.HashConsistency || res.Status != executor.StatusPassed {
			continue
		}
		r, ok := refs[res.Case.Algorithm]
		if !ok {
			refs[res.Case.Algorithm] = ref{digest: res.Output, source: res.Case.Source}
			continue
		}
		if res.Output != r.digest {
			res.Status = executor.StatusFailed
			res.Detail = fmt.Sprintf("digest disagrees with %s: %s vs %s", r.source, res.Output, r.digest)
		}
	}
}
