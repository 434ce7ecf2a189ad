package report

import (
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/smlab/smconform/internal/contract"
	"github.com/smlab/smconform/internal/executor"
	"github.com/smlab/smconform/internal/matrix"
	"github.com/smlab/smconform/internal/registry"
)

func golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// fixtureReport is a frozen run: one exclusion, one cross-language cipher
// failure, one timeout after retry, one skip.
func fixtureReport() *Report {
	digest := "66c7f0f4b1a2c3d4"
	results := []executor.Result{
		hashResult(0, "go", digest, executor.StatusPassed),
		hashResult(1, "python", digest, executor.StatusPassed),
		{
			Case:   matrix.Case{ID: "cipher-roundtrip/go->go", Index: 2, Family: matrix.CipherRoundtrip, Algorithm: contract.SM4, Source: "go", Target: "go"},
			Status: executor.StatusPassed, Output: "c1f3c1f3", Attempts: 1,
		},
		{
			Case:   matrix.Case{ID: "cipher-roundtrip/go->python", Index: 3, Family: matrix.CipherRoundtrip, Algorithm: contract.SM4, Source: "go", Target: "python"},
			Status: executor.StatusFailed, Detail: `roundtrip mismatch: python decrypted "Wrong", want "Test message for SM4"`, Attempts: 1,
		},
		{
			Case:   matrix.Case{ID: "cipher-roundtrip/python->go", Index: 4, Family: matrix.CipherRoundtrip, Algorithm: contract.SM4, Source: "python", Target: "go"},
			Status: executor.StatusTimedOut, Detail: "decrypt@go: no reply within 30s", Attempts: 2,
		},
		{
			Case:   matrix.Case{ID: "cipher-roundtrip/python->python", Index: 5, Family: matrix.CipherRoundtrip, Algorithm: contract.SM4, Source: "python", Target: "python"},
			Status: executor.StatusPassed, Output: "c1f3c1f3", Attempts: 1,
		},
		{
			Case:   matrix.Case{ID: "signature-roundtrip/go->go", Index: 6, Family: matrix.SignatureRoundtrip, Algorithm: contract.SM2, Source: "go", Target: "go"},
			Status: executor.StatusPassed, Output: "ab12cd34", Attempts: 1,
		},
		{
			Case:   matrix.Case{ID: "signature-roundtrip/go->python", Index: 7, Family: matrix.SignatureRoundtrip, Algorithm: contract.SM2, Source: "go", Target: "python"},
			Status: executor.StatusPassed, Output: "ab12cd34", Attempts: 1,
		},
		{
			Case:   matrix.Case{ID: "signature-roundtrip/python->go", Index: 8, Family: matrix.SignatureRoundtrip, Algorithm: contract.SM2, Source: "python", Target: "go"},
			Status: executor.StatusSkipped, Detail: `participant "python" not in roster`, Attempts: 1,
		},
		{
			Case:   matrix.Case{ID: "signature-roundtrip/python->python", Index: 9, Family: matrix.SignatureRoundtrip, Algorithm: contract.SM2, Source: "python", Target: "python"},
			Status: executor.StatusPassed, Output: "ab12cd34", Attempts: 1,
		},
	}
	return Aggregate(RunInfo{
		RunID:        "0198c2f2-0000-7000-8000-000000000000",
		Participants: []string{"go", "python"},
		Excluded: []registry.Exclusion{{
			Participant: contract.Participant{Name: "php", Command: []string{"php", "wrapper.php"}},
			Reason:      "timed_out: no reply within 10s",
		}},
		StartedAt:  time.Date(2025, 11, 8, 12, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2025, 11, 8, 12, 0, 42, 0, time.UTC),
	}, results)
}

func TestFormatTextGolden(t *testing.T) {
	g := golden(t)
	g.Assert(t, "run_report", []byte(FormatText(fixtureReport())))
}

func TestFormatJSONGoldenEmptyRun(t *testing.T) {
	rep := Aggregate(RunInfo{
		RunID:        "0198c2f2-0000-7000-8000-000000000000",
		Participants: []string{},
		StartedAt:    time.Date(2025, 11, 8, 12, 0, 0, 0, time.UTC),
		FinishedAt:   time.Date(2025, 11, 8, 12, 0, 42, 0, time.UTC),
	}, nil)
	out, err := FormatJSON(rep)
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}
	g := golden(t)
	g.Assert(t, "empty_run", []byte(out))
}

func TestFormatTextEmptyRun(t *testing.T) {
	rep := Aggregate(RunInfo{RunID: "empty", Participants: []string{}}, nil)
	out := FormatText(rep)
	if !strings.Contains(out, "Participants: none") {
		t.Errorf("empty roster not announced:\n%s", out)
	}
	if !strings.Contains(out, "Result: PASS (0/0 passed)") {
		t.Errorf("empty run should pass:\n%s", out)
	}
}

func TestFormatTextTruncatesLongIDs(t *testing.T) {
	results := []executor.Result{{
		Case: matrix.Case{
			ID:     "cipher-roundtrip/some-very-long-participant->another-long-one",
			Family: matrix.CipherRoundtrip, Algorithm: contract.SM4,
			Source: "some-very-long-participant", Target: "another-long-one",
		},
		Status: executor.StatusFailed, Detail: "roundtrip mismatch", Attempts: 1,
	}}
	out := FormatText(Aggregate(RunInfo{RunID: "x", Participants: []string{"a"}}, results))
	if !strings.Contains(out, "cipher-roundtrip/some-very-long-parti...") {
		t.Errorf("long id not truncated:\n%s", out)
	}
}
