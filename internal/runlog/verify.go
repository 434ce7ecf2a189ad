package runlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// verdicts is the closed set of terminal case states an entry may carry.
var verdicts = map[string]bool{
	"passed":    true,
	"failed":    true,
	"timed_out": true,
	"skipped":   true,
}

// VerifyResult holds the outcome of an evidence log verification.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Runs      int    `json:"runs"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// Verify reads a JSONL evidence log and validates it. The hash chain must
// be intact: each entry's prev_hash is the SHA-256 of the previous line,
// starting from the genesis hash. Each entry must also make sense as
// evidence: its status must be a known case verdict, and entries belonging
// to one run must be contiguous, since runs append their verdicts as a
// block and a run id resuming after another run means lines were reordered.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	runs := 0
	currentRun := ""
	finishedRuns := make(map[string]bool)
	var prevLineBytes []byte

	for scanner.Scan() {
		lineNum++
		raw := scanner.Bytes()

		// Make a copy since scanner reuses the buffer
		line := make([]byte, len(raw))
		copy(line, raw)

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return VerifyResult{
				Error:     fmt.Sprintf("parse error: %v", err),
				ErrorLine: lineNum,
			}
		}

		wantHash := GenesisHash
		if lineNum > 1 {
			wantHash = HashLine(prevLineBytes)
		}
		if entry.PrevHash != wantHash {
			return VerifyResult{
				Error:     fmt.Sprintf("hash mismatch: expected %s, got %s", wantHash, entry.PrevHash),
				ErrorLine: lineNum,
			}
		}

		if !verdicts[entry.Status] {
			return VerifyResult{
				Error:     fmt.Sprintf("unknown case verdict %q", entry.Status),
				ErrorLine: lineNum,
			}
		}

		if entry.RunID != currentRun {
			if finishedRuns[entry.RunID] {
				return VerifyResult{
					Error:     fmt.Sprintf("run %s resumes after later entries", entry.RunID),
					ErrorLine: lineNum,
				}
			}
			if currentRun != "" {
				finishedRuns[currentRun] = true
			}
			currentRun = entry.RunID
			runs++
		}

		prevLineBytes = line
	}

	if err := scanner.Err(); err != nil {
		return VerifyResult{Error: fmt.Sprintf("scan: %v", err)}
	}

	return VerifyResult{Valid: true, Lines: lineNum, Runs: runs}
}
