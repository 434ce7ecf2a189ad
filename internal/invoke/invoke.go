// Package invoke launches participant processes and normalizes every way an
// invocation can end into a closed outcome taxonomy. Callers never touch raw
// process state; they branch on Outcome.Kind.
package invoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smlab/smconform/internal/contract"
)

// Kind classifies how an invocation ended. The kinds are disjoint: exactly
// one applies to any invocation.
type Kind string

const (
	// Success: the process exited zero with a well-formed success reply.
	Success Kind = "success"
	// LaunchFailure: the process could not be started or was aborted by
	// the harness for reasons other than its own deadline.
	LaunchFailure Kind = "launch_failure"
	// TimedOut: the process overran its deadline and was killed.
	TimedOut Kind = "timed_out"
	// MalformedOutput: the process ran but its stdout or exit code breaks
	// the contract.
	MalformedOutput Kind = "malformed_output"
	// OperationError: a well-formed error reply. The participant executed
	// and reported a failure of its own.
	OperationError Kind = "operation_error"
)

// DefaultTimeout bounds one participant process when no override is set.
const DefaultTimeout = 30 * time.Second

// waitDelay caps how long Run waits for a participant's pipes after the
// process is killed or exits. Without it an orphaned child that inherited
// stdout keeps the harness hanging past the deadline.
const waitDelay = time.Second

// maxCapture bounds diagnostic captures so a chatty participant cannot
// bloat reports.
const maxCapture = 2048

// Outcome is the normalized result of one invocation. Response is non-nil
// iff Kind is Success; Message carries the diagnostic for every other kind.
type Outcome struct {
	Kind     Kind
	Response *contract.Response
	Message  string
	Raw      string // captured stdout when it violated the contract
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Invoker runs participant invocations with a bounded lifetime.
type Invoker struct {
	Timeout time.Duration
}

// New returns an Invoker. A non-positive timeout selects DefaultTimeout.
func New(timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Invoker{Timeout: timeout}
}

// Invoke launches the participant for one request and waits for it to exit
// or overrun its deadline. The process is killed on timeout. Arguments form
// a discrete vector; nothing passes through a shell.
func (iv *Invoker) Invoke(ctx context.Context, p contract.Participant, req contract.Request) Outcome {
	start := time.Now()

	argv, err := p.Argv(req)
	if err != nil {
		return Outcome{Kind: LaunchFailure, Message: err.Error()}
	}

	cctx, cancel := context.WithTimeout(ctx, iv.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	cmd.Dir = p.Dir
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	out := Outcome{
		Stderr:   truncate(stderr.String(), maxCapture),
		Duration: time.Since(start),
	}

	if runErr != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		out.Kind = TimedOut
		out.Message = fmt.Sprintf("no reply within %s", iv.Timeout)
		iv.trace(p, req, &out)
		return out
	}
	if runErr != nil && cctx.Err() != nil {
		out.Kind = LaunchFailure
		out.Message = fmt.Sprintf("invocation aborted: %v", cctx.Err())
		iv.trace(p, req, &out)
		return out
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(runErr, &exitErr):
			exitCode = exitErr.ExitCode()
		case errors.Is(runErr, exec.ErrWaitDelay):
			// The process exited but something kept its pipes open. The
			// reply we captured is still judged on its own merits.
			exitCode = cmd.ProcessState.ExitCode()
		default:
			out.Kind = LaunchFailure
			out.Message = runErr.Error()
			iv.trace(p, req, &out)
			return out
		}
	}
	out.ExitCode = exitCode

	resp, decErr := contract.Decode(req, stdout.Bytes(), exitCode)
	if decErr != nil {
		var violation *contract.ViolationError
		var opErr *contract.OperationError
		switch {
		case errors.As(decErr, &violation):
			out.Kind = MalformedOutput
			out.Message = violation.Reason
			out.Raw = truncate(violation.Raw, maxCapture)
		case errors.As(decErr, &opErr):
			out.Kind = OperationError
			out.Message = opErr.Message
		default:
			out.Kind = MalformedOutput
			out.Message = decErr.Error()
		}
		iv.trace(p, req, &out)
		return out
	}

	out.Kind = Success
	out.Response = resp
	iv.trace(p, req, &out)
	return out
}

func (iv *Invoker) trace(p contract.Participant, req contract.Request, out *Outcome) {
	log.Debug().
		Str("participant", p.Name).
		Str("request", req.String()).
		Str("kind", string(out.Kind)).
		Dur("duration", out.Duration).
		Msg("invocation finished")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
