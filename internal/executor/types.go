package executor

import (
	"time"

	"github.com/smlab/smconform/internal/invoke"
	"github.com/smlab/smconform/internal/matrix"
)

// Status is the terminal state of one case. A case is pending until a worker
// picks it up and running while its legs execute; only terminal states are
// ever recorded.
type Status string

const (
	StatusPassed   Status = "passed"
	StatusFailed   Status = "failed"
	StatusTimedOut Status = "timed_out"
	StatusSkipped  Status = "skipped"
)

// Leg records one participant invocation made while executing a case. A
// roundtrip produces two legs; the negative control adds a third.
type Leg struct {
	Name        string        `json:"name"`
	Participant string        `json:"participant"`
	Kind        invoke.Kind   `json:"kind"`
	Detail      string        `json:"detail,omitempty"`
	Duration    time.Duration `json:"duration_ms"`
}

// Result is the terminal record of one case. Output carries the
// family-specific artifact: the digest for hash cases, the ciphertext or
// signature that made the roundtrip for pair cases.
type Result struct {
	Case     matrix.Case   `json:"case"`
	Status   Status        `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Output   string        `json:"output,omitempty"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration_ms"`
	Legs     []Leg         `json:"legs,omitempty"`
}
