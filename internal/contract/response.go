package contract

import (
	"encoding/json"
	"fmt"
)

// Response status discriminants. Any other value is a contract violation.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the single JSON object a participant prints on stdout.
// Success populates the fields relevant to the operation; error carries
// only a message.
type Response struct {
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Output     string `json:"output,omitempty"`
	Valid      *bool  `json:"valid,omitempty"`
	Signature  string `json:"signature,omitempty"`
	PrivateKey string `json:"private_key,omitempty"`
	PublicKey  string `json:"public_key,omitempty"`
}

// ViolationError reports output that breaks the contract: not JSON, missing
// or unknown status, a status that contradicts the exit code, or a success
// reply missing a field the operation requires. Raw holds the captured
// stdout, truncated by the caller if oversized.
type ViolationError struct {
	Reason string
	Raw    string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("contract violation: %s", e.Reason)
}

// OperationError is a failure the participant itself reported: a well-formed
// error reply with a matching nonzero exit code. It is a legitimate outcome,
// not a harness defect.
type OperationError struct {
	Message string
}

func (e *OperationError) Error() string {
	if e.Message == "" {
		return "participant reported an error"
	}
	return e.Message
}

// Decode validates participant stdout against the contract and cross-checks
// the exit code. On success it returns the parsed reply. A *ViolationError
// means the output is unusable; a *OperationError means the participant
// executed and reported a failure of its own.
func Decode(req Request, stdout []byte, exitCode int) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(stdout, &resp); err != nil {
		return nil, &ViolationError{
			Reason: fmt.Sprintf("stdout is not a JSON object: %v", err),
			Raw:    string(stdout),
		}
	}
	switch resp.Status {
	case StatusSuccess:
		if exitCode != 0 {
			return nil, &ViolationError{
				Reason: fmt.Sprintf("status %q with exit code %d", resp.Status, exitCode),
				Raw:    string(stdout),
			}
		}
	case StatusError:
		if exitCode == 0 {
			return nil, &ViolationError{
				Reason: fmt.Sprintf("status %q with exit code 0", resp.Status),
				Raw:    string(stdout),
			}
		}
		return nil, &OperationError{Message: resp.Message}
	case "":
		return nil, &ViolationError{Reason: "reply has no status field", Raw: string(stdout)}
	default:
		return nil, &ViolationError{
			Reason: fmt.Sprintf("unknown status %q", resp.Status),
			Raw:    string(stdout),
		}
	}
	if missing := missingField(req, &resp); missing != "" {
		return nil, &ViolationError{
			Reason: fmt.Sprintf("success reply missing %s", missing),
			Raw:    string(stdout),
		}
	}
	return &resp, nil
}

// missingField names the first required success field absent from the reply,
// or "" when the reply is complete for the operation.
func missingField(req Request, resp *Response) string {
	switch req.Operation {
	case OpHash, OpEncrypt, OpDecrypt:
		if resp.Output == "" {
			return "output"
		}
	case OpSign:
		if resp.Signature == "" {
			return "signature"
		}
		// A sign request without key material asks the participant to
		// generate a pair; the reply must surface both halves.
		if req.Input[FieldPrivateKey] == "" {
			if resp.PrivateKey == "" {
				return "private_key"
			}
			if resp.PublicKey == "" {
				return "public_key"
			}
		}
	case OpVerify:
		if resp.Valid == nil {
			return "valid"
		}
	}
	return ""
}
