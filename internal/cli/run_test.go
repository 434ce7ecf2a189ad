package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smlab/smconform/internal/history"
	"github.com/smlab/smconform/internal/report"
	"github.com/smlab/smconform/internal/reportdiff"
	"github.com/smlab/smconform/internal/runlog"
)

// conformingScript behaves like a real wrapper: canned artifacts, and decrypt
// and verify succeed only for the artifacts the script itself produced.
const conformingScript = `#!/bin/sh
alg="$1"; op="$2"; input="$4"
case "$alg-$op" in
  sm3-hash)
    printf '{"status":"success","output":"d19e5700"}' ;;
  sm4-encrypt)
    printf '{"status":"success","output":"c1f3c1f3"}' ;;
  sm4-decrypt)
    case "$input" in
      *'"ciphertext":"c1f3c1f3"'*) printf '{"status":"success","output":"Test message for SM4"}' ;;
      *) printf '{"status":"error","message":"bad ciphertext"}'; exit 1 ;;
    esac ;;
  sm2-sign)
    printf '{"status":"success","signature":"ab12cd34","private_key":"aa","public_key":"bb"}' ;;
  sm2-verify)
    case "$input" in
      *'"signature":"ab12cd34"'*) printf '{"status":"success","valid":true}' ;;
      *) printf '{"status":"success","valid":false}' ;;
    esac ;;
  *)
    printf '{"status":"error","message":"unsupported"}'; exit 1 ;;
esac
`

func writeRoster(t *testing.T, dir string, names ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("participants:\n")
	for _, name := range names {
		script := filepath.Join(dir, name+".sh")
		if err := os.WriteFile(script, []byte(conformingScript), 0o755); err != nil {
			t.Fatalf("write script: %v", err)
		}
		fmt.Fprintf(&b, "  - name: %s\n    command: [%q]\n", name, script)
	}
	roster := filepath.Join(dir, "roster.yaml")
	if err := os.WriteFile(roster, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	return roster
}

func TestExecuteRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	roster := writeRoster(t, dir, "alpha", "beta")
	out := filepath.Join(dir, "report.json")
	db := filepath.Join(dir, "history.db")

	rep, err := executeRun(context.Background(), runParams{
		roster:  roster,
		timeout: 5 * time.Second,
		workers: 2,
		output:  out,
		db:      db,
	})
	if err != nil {
		t.Fatalf("executeRun: %v", err)
	}

	if !rep.Clean() {
		t.Fatalf("expected a clean run:\n%s", report.FormatText(rep))
	}
	// Two participants: 2 hash + 4 cipher + 4 signature.
	if rep.Summary.Total != 10 {
		t.Errorf("expected 10 cases, got %d", rep.Summary.Total)
	}
	if len(rep.Participants) != 2 {
		t.Errorf("expected 2 participants, got %v", rep.Participants)
	}

	if _, err := os.Stat(out); err != nil {
		t.Errorf("report file not written: %v", err)
	}

	store, err := history.Open(db)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()
	runs, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 saved run, got %d", len(runs))
	}
	if runs[0].RunID != rep.RunID {
		t.Errorf("saved run %q, report run %q", runs[0].RunID, rep.RunID)
	}
}

func TestExecuteRunEmptyRosterIsClean(t *testing.T) {
	dir := t.TempDir()
	roster := filepath.Join(dir, "roster.yaml")
	if err := os.WriteFile(roster, []byte("participants: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rep, err := executeRun(context.Background(), runParams{roster: roster, timeout: time.Second, workers: 1})
	if err != nil {
		t.Fatalf("executeRun: %v", err)
	}
	if !rep.Clean() {
		t.Error("a run over zero participants should be clean")
	}
	if rep.Summary.Total != 0 {
		t.Errorf("expected 0 cases, got %d", rep.Summary.Total)
	}
}

func TestExecuteRunMissingRoster(t *testing.T) {
	_, err := executeRun(context.Background(), runParams{
		roster:  filepath.Join(t.TempDir(), "absent.yaml"),
		timeout: time.Second,
		workers: 1,
	})
	if err == nil {
		t.Fatal("expected an error for a missing roster")
	}
}

func TestExecuteRunAppendsVerifiableEvidenceLog(t *testing.T) {
	dir := t.TempDir()
	roster := writeRoster(t, dir, "alpha")
	logPath := filepath.Join(dir, "evidence.jsonl")

	rep, err := executeRun(context.Background(), runParams{
		roster:  roster,
		timeout: 5 * time.Second,
		workers: 1,
		logFile: logPath,
	})
	if err != nil {
		t.Fatalf("executeRun: %v", err)
	}

	res := runlog.Verify(logPath)
	if !res.Valid {
		t.Fatalf("evidence log broken at line %d: %s", res.ErrorLine, res.Error)
	}
	if res.Lines != rep.Summary.Total {
		t.Errorf("log has %d entries for %d cases", res.Lines, rep.Summary.Total)
	}

	// A second run chains onto the same file.
	if _, err := executeRun(context.Background(), runParams{
		roster:  roster,
		timeout: 5 * time.Second,
		workers: 1,
		logFile: logPath,
	}); err != nil {
		t.Fatalf("second executeRun: %v", err)
	}
	res = runlog.Verify(logPath)
	if !res.Valid {
		t.Fatalf("chained evidence log broken at line %d: %s", res.ErrorLine, res.Error)
	}
	if res.Lines != 2*rep.Summary.Total {
		t.Errorf("log has %d entries after two runs, want %d", res.Lines, 2*rep.Summary.Total)
	}
}

func TestReportRoundtripThroughDiff(t *testing.T) {
	dir := t.TempDir()
	roster := writeRoster(t, dir, "alpha")
	out := filepath.Join(dir, "report.json")

	rep, err := executeRun(context.Background(), runParams{
		roster:  roster,
		timeout: 5 * time.Second,
		workers: 1,
		output:  out,
	})
	if err != nil {
		t.Fatalf("executeRun: %v", err)
	}

	loaded, err := report.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	d := reportdiff.Diff(rep, loaded)
	if d.HasChanges {
		t.Errorf("a report diffed against its own persisted copy changed: %+v", d.Changes)
	}
}

func TestRunInitFixtures(t *testing.T) {
	initFixturesOutput = filepath.Join(t.TempDir(), "fixtures.yaml")

	if err := runInitFixtures(nil, nil); err != nil {
		t.Fatalf("runInitFixtures: %v", err)
	}

	data, err := os.ReadFile(initFixturesOutput)
	if err != nil {
		t.Fatalf("fixtures.yaml not created: %v", err)
	}
	if !strings.Contains(string(data), "Hello, SM3!") {
		t.Error("fixtures.yaml missing default hash data")
	}
	if !strings.Contains(string(data), "negative_control") {
		t.Error("fixtures.yaml missing negative_control")
	}

	// Second call must refuse to overwrite.
	if err := runInitFixtures(nil, nil); err == nil {
		t.Error("expected an error when the file already exists")
	}
}
