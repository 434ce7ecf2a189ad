package registry

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func goodWrapper(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name+".sh")
	writeFile(t, path, "#!/bin/sh\nprintf '{\"status\":\"success\",\"output\":\"aa\"}'\n", 0o755)
	return path
}

func TestDiscoverFromRoster(t *testing.T) {
	dir := t.TempDir()
	zebra := goodWrapper(t, dir, "zebra")
	alpha := goodWrapper(t, dir, "alpha")

	roster := filepath.Join(dir, "participants.yaml")
	writeFile(t, roster, `
participants:
  - name: zebra
    command: ["`+zebra+`"]
  - name: alpha
    command: ["`+alpha+`"]
`, 0o644)

	reg, err := Discover(context.Background(), Options{ConfigPath: roster, ProbeTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got, want := reg.Names(), []string{"alpha", "zebra"}; !reflect.DeepEqual(got, want) {
		t.Errorf("names = %v, want %v (lexicographic)", got, want)
	}
	if len(reg.Excluded()) != 0 {
		t.Errorf("excluded = %v, want none", reg.Excluded())
	}
}

func TestDiscoverProbeExcludesSilentCandidate(t *testing.T) {
	dir := t.TempDir()
	good := goodWrapper(t, dir, "good")
	mute := filepath.Join(dir, "mute.sh")
	writeFile(t, mute, "#!/bin/sh\nsleep 5\n", 0o755)

	roster := filepath.Join(dir, "participants.yaml")
	writeFile(t, roster, `
participants:
  - name: good
    command: ["`+good+`"]
  - name: mute
    command: ["`+mute+`"]
`, 0o644)

	reg, err := Discover(context.Background(), Options{ConfigPath: roster, ProbeTimeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got, want := reg.Names(), []string{"good"}; !reflect.DeepEqual(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}
	excluded := reg.Excluded()
	if len(excluded) != 1 || excluded[0].Participant.Name != "mute" {
		t.Fatalf("excluded = %v, want mute", excluded)
	}
	if excluded[0].Reason == "" {
		t.Error("exclusion should carry a reason")
	}
}

func TestDiscoverRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	w := goodWrapper(t, dir, "w")
	roster := filepath.Join(dir, "participants.yaml")
	writeFile(t, roster, `
participants:
  - name: twin
    command: ["`+w+`"]
  - name: twin
    command: ["`+w+`"]
`, 0o644)

	if _, err := Discover(context.Background(), Options{ConfigPath: roster, SkipProbe: true}); err == nil {
		t.Fatal("expected duplicate-name error")
	}
}

func TestDiscoverRejectsInvalidDescriptor(t *testing.T) {
	dir := t.TempDir()
	roster := filepath.Join(dir, "participants.yaml")
	writeFile(t, roster, `
participants:
  - name: hollow
    command: []
`, 0o644)

	if _, err := Discover(context.Background(), Options{ConfigPath: roster, SkipProbe: true}); err == nil {
		t.Fatal("expected validation error for empty command")
	}
}

func TestDiscoverMissingRosterIsError(t *testing.T) {
	if _, err := Discover(context.Background(), Options{ConfigPath: "/nonexistent/roster.yaml"}); err == nil {
		t.Fatal("expected error for missing roster")
	}
}

func TestDiscoverMalformedRosterIsError(t *testing.T) {
	dir := t.TempDir()
	roster := filepath.Join(dir, "participants.yaml")
	writeFile(t, roster, "participants: [::nonsense", 0o644)
	if _, err := Discover(context.Background(), Options{ConfigPath: roster, SkipProbe: true}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestScanConventionalLayout(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "py", "wrapper.py"), "print('hi')\n", 0o644)
	writeFile(t, filepath.Join(root, "js", "wrapper.js"), "console.log('hi')\n", 0o644)
	writeFile(t, filepath.Join(root, "go", "wrapper"), "#!/bin/sh\n", 0o755)

	reg, err := Discover(context.Background(), Options{Root: root, SkipProbe: true})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got, want := reg.Names(), []string{"go", "javascript", "python"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for _, p := range reg.Participants() {
		switch p.Name {
		case "go":
			if len(p.Command) != 1 {
				t.Errorf("go command = %v, want bare binary", p.Command)
			}
		case "javascript":
			if len(p.Command) != 2 || p.Command[0] != "node" {
				t.Errorf("javascript command = %v", p.Command)
			}
		case "python":
			if len(p.Command) != 2 || p.Command[0] != "python3" {
				t.Errorf("python command = %v", p.Command)
			}
		}
		if p.Dir == "" {
			t.Errorf("%s has no working directory", p.Name)
		}
	}
}

func TestScanRelativeRootProducesRunnableParticipants(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "wrappers", "go", "wrapper"),
		"#!/bin/sh\nprintf '{\"status\":\"success\",\"output\":\"aa\"}'\n", 0o755)
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			t.Fatalf("chdir back: %v", err)
		}
	})

	// Default options: relative root, probe enabled. The probe runs the
	// wrapper with Dir set to its directory, so a root-relative command
	// would be resolved against wrappers/go a second time and never start.
	reg, err := Discover(context.Background(), Options{ProbeTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got, want := reg.Names(), []string{"go"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %v, want %v (excluded: %v)", got, want, reg.Excluded())
	}
	p := reg.Participants()[0]
	if !filepath.IsAbs(p.Command[0]) {
		t.Errorf("command = %v, want absolute path", p.Command)
	}
	if !filepath.IsAbs(p.Dir) {
		t.Errorf("dir = %s, want absolute path", p.Dir)
	}
}

func TestProbeHashesConfiguredData(t *testing.T) {
	dir := t.TempDir()
	argv := filepath.Join(dir, "argv.txt")
	spy := filepath.Join(dir, "spy.sh")
	writeFile(t, spy, "#!/bin/sh\necho \"$@\" > "+argv+"\nprintf '{\"status\":\"success\",\"output\":\"aa\"}'\n", 0o755)

	roster := filepath.Join(dir, "participants.yaml")
	writeFile(t, roster, `
participants:
  - name: spy
    command: ["`+spy+`"]
`, 0o644)

	_, err := Discover(context.Background(), Options{
		ConfigPath:   roster,
		ProbeTimeout: 5 * time.Second,
		ProbeData:    "Hello, SM3!",
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	seen, err := os.ReadFile(argv)
	if err != nil {
		t.Fatalf("read recorded argv: %v", err)
	}
	if !strings.Contains(string(seen), "Hello, SM3!") {
		t.Errorf("probe argv = %q, want the configured hash data", seen)
	}
}

func TestScanMissingRootYieldsEmptySet(t *testing.T) {
	reg, err := Discover(context.Background(), Options{
		Root:      filepath.Join(t.TempDir(), "absent"),
		SkipProbe: true,
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(reg.Participants()) != 0 {
		t.Errorf("participants = %v, want none", reg.Names())
	}
}
