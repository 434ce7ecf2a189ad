// Package executor drives generated cases through participant processes and
// records one terminal result per case. Results land in pre-sized slots
// indexed by case position, so concurrent workers never contend on shared
// state and the output order always matches generation order.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smlab/smconform/internal/contract"
	"github.com/smlab/smconform/internal/invoke"
	"github.com/smlab/smconform/internal/matrix"
)

// Config holds runtime parameters for a run.
type Config struct {
	// Participants is the probed roster cases refer to by name.
	Participants []contract.Participant
	// Timeout bounds each participant invocation. Zero selects the
	// invoker default.
	Timeout time.Duration
	// Workers is the number of cases executed concurrently. Values below
	// 2 run the matrix sequentially.
	Workers int
	// OnResult, when set, is called once per terminal result as cases
	// finish. With multiple workers, calls arrive from multiple
	// goroutines in completion order.
	OnResult func(Result)
}

// Runner executes cases against the participant roster.
type Runner struct {
	invoker      *invoke.Invoker
	participants map[string]contract.Participant
	workers      int
	onResult     func(Result)
}

// NewRunner creates a runner from the given configuration.
func NewRunner(cfg Config) *Runner {
	m := make(map[string]contract.Participant, len(cfg.Participants))
	for _, p := range cfg.Participants {
		m[p.Name] = p
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		invoker:      invoke.New(cfg.Timeout),
		participants: m,
		workers:      workers,
		onResult:     cfg.OnResult,
	}
}

// Run executes every case and returns results indexed exactly like cases.
// Each slot is written once by the worker that ran the case; Run returns
// only after all workers have finished.
func (r *Runner) Run(ctx context.Context, cases []matrix.Case) []Result {
	results := make([]Result, len(cases))

	if r.workers <= 1 {
		for i := range cases {
			results[i] = r.runCase(ctx, cases[i])
			if r.onResult != nil {
				r.onResult(results[i])
			}
		}
		return results
	}

	queue := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				results[i] = r.runCase(ctx, cases[i])
				if r.onResult != nil {
					r.onResult(results[i])
				}
			}
		}()
	}
	for i := range cases {
		queue <- i
	}
	close(queue)
	wg.Wait()
	return results
}

// runCase executes one case, retrying once if the attempt timed out. Only
// timeouts retry: a deterministic mismatch would fail identically again.
func (r *Runner) runCase(ctx context.Context, c matrix.Case) Result {
	log.Debug().Str("case", c.ID).Msg("case started")
	res := r.attempt(ctx, c)
	if res.Status == StatusTimedOut && ctx.Err() == nil {
		log.Warn().Str("case", c.ID).Msg("case timed out, retrying once")
		res = r.attempt(ctx, c)
		res.Attempts = 2
	}
	log.Debug().
		Str("case", c.ID).
		Str("status", string(res.Status)).
		Dur("duration", res.Duration).
		Msg("case finished")
	return res
}

func (r *Runner) attempt(ctx context.Context, c matrix.Case) Result {
	start := time.Now()
	res := Result{Case: c, Attempts: 1}

	if ctx.Err() != nil {
		res.Status = StatusSkipped
		res.Detail = "run canceled"
		return res
	}

	switch c.Family {
	case matrix.HashConsistency:
		r.hashCase(ctx, &res)
	case matrix.CipherRoundtrip:
		r.cipherCase(ctx, &res)
	case matrix.SignatureRoundtrip:
		r.signatureCase(ctx, &res)
	case matrix.EncryptionRoundtrip:
		r.encryptionCase(ctx, &res)
	default:
		res.Status = StatusSkipped
		res.Detail = fmt.Sprintf("unknown family %q", c.Family)
	}

	res.Duration = time.Since(start)
	return res
}

// leg invokes one participant and records the outcome. A non-nil reply means
// the case may proceed; otherwise the terminal status has been set.
func (r *Runner) leg(ctx context.Context, res *Result, name, participant string, req contract.Request) *contract.Response {
	p, ok := r.participants[participant]
	if !ok {
		res.Status = StatusSkipped
		res.Detail = fmt.Sprintf("participant %q not in roster", participant)
		return nil
	}

	out := r.invoker.Invoke(ctx, p, req)
	res.Legs = append(res.Legs, Leg{
		Name:        name,
		Participant: participant,
		Kind:        out.Kind,
		Detail:      out.Message,
		Duration:    out.Duration,
	})

	switch out.Kind {
	case invoke.Success:
		return out.Response
	case invoke.TimedOut:
		res.Status = StatusTimedOut
	default: // launch failure, malformed output, operation error
		res.Status = StatusFailed
	}
	res.Detail = fmt.Sprintf("%s@%s: %s", name, participant, out.Message)
	if out.Raw != "" {
		res.Detail += fmt.Sprintf(" (stdout: %s)", out.Raw)
	}
	return nil
}
