// Package runlog appends per-case evidence to a hash-chained JSONL file.
// Each finished case becomes one line whose prev_hash is the SHA-256 of the
// previous line, so entries cannot be edited, dropped or inserted after the
// fact without breaking the chain.
package runlog

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// GenesisHash is the prev_hash for the first entry in a new evidence log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one line in the hash-chained JSONL evidence log. All fields are
// scalars (no map[string]any) to guarantee deterministic json.Marshal field
// order for reproducible hashing.
type Entry struct {
	Timestamp  string `json:"ts"`
	RunID      string `json:"run_id"`
	Case       string `json:"case"`
	Family     string `json:"family"`
	Source     string `json:"source"`
	Target     string `json:"target"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	DurationMS int64  `json:"duration_ms"`
	Detail     string `json:"detail"`
	PrevHash   string `json:"prev_hash"`
}

// Log is an append-only JSONL evidence log with SHA-256 hash chaining.
type Log struct {
	path     string
	file     *os.File
	prevHash string
	mu       sync.Mutex
}

// Open opens (or creates) an evidence log file for appending.
// If the file already exists, it reads the last line to recover the chain tail.
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("runlog: create directory: %w", err)
	}

	prevHash := GenesisHash

	// Read existing file to find chain tail
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("runlog: read existing log: %w", err)
		}
		scanner := bufio.NewScanner(f)
		var lastLine []byte
		for scanner.Scan() {
			lastLine = make([]byte, len(scanner.Bytes()))
			copy(lastLine, scanner.Bytes())
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("runlog: scan existing log: %w", err)
		}
		if len(lastLine) > 0 {
			prevHash = HashLine(lastLine)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("runlog: open file: %w", err)
	}

	return &Log{
		path:     path,
		file:     file,
		prevHash: prevHash,
	}, nil
}

// Record appends an Entry to the log with hash chaining. It sets the entry's
// PrevHash and Timestamp (if empty), marshals to JSON, writes the line, and
// syncs to disk. Safe for concurrent use.
func (l *Log) Record(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	}
	entry.PrevHash = l.prevHash

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("runlog: marshal entry: %w", err)
	}

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("runlog: write entry: %w", err)
	}

	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("runlog: sync: %w", err)
	}

	l.prevHash = HashLine(line)
	return nil
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
