// Package registry discovers participant implementations from an explicit
// YAML roster or a conventional directory layout, and confirms each one
// answers before it enters the matrix.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/smlab/smconform/internal/contract"
	"github.com/smlab/smconform/internal/invoke"
)

// defaultProbeData feeds the liveness check when the caller supplies no
// fixture data. Any well-formed success reply counts; digest agreement is
// judged later against the other participants.
const defaultProbeData = "probe"

// DefaultProbeTimeout bounds the liveness check per candidate. Probes are
// short on purpose: a participant that needs longer to hash ten bytes will
// not survive real cases either.
const DefaultProbeTimeout = 10 * time.Second

// DefaultRoot is the directory scanned when neither a roster nor a root is
// given.
const DefaultRoot = "wrappers"

// Options select where candidates come from and how they are checked.
type Options struct {
	// ConfigPath names a YAML roster. When set it is authoritative and the
	// conventional scan is skipped.
	ConfigPath string
	// Root is the directory scanned for conventional wrapper layouts when
	// no roster is given. Empty selects DefaultRoot.
	Root string
	// ProbeTimeout bounds the liveness check. Zero selects the default.
	ProbeTimeout time.Duration
	// ProbeData is the text hashed by the liveness check. Passing the same
	// data the hash-consistency family will use makes probe diagnostics
	// directly comparable to run diagnostics. Empty selects a placeholder.
	ProbeData string
	// SkipProbe admits candidates without checking them.
	SkipProbe bool
}

// Exclusion records a candidate dropped by the liveness probe.
type Exclusion struct {
	Participant contract.Participant `json:"participant"`
	Reason      string               `json:"reason"`
}

// Registry holds the probed participant set in lexicographic name order.
type Registry struct {
	participants []contract.Participant
	excluded     []Exclusion
}

type rosterFile struct {
	Participants []contract.Participant `yaml:"participants"`
}

// conventions mirror the layout the historical wrapper tree shipped in:
// one subdirectory per implementation, interpreted sources run under their
// runtime, the compiled wrapper run directly.
var conventions = []struct {
	name    string
	rel     string
	runtime string
}{
	{name: "go", rel: "go/wrapper"},
	{name: "javascript", rel: "js/wrapper.js", runtime: "node"},
	{name: "php", rel: "php/wrapper.php", runtime: "php"},
	{name: "python", rel: "py/wrapper.py", runtime: "python3"},
}

// Discover assembles the participant set. Roster or scan problems are
// construction errors; a candidate failing its probe is an exclusion, not an
// error. Zero surviving participants is a valid outcome.
func Discover(ctx context.Context, opts Options) (*Registry, error) {
	var candidates []contract.Participant
	var err error
	if opts.ConfigPath != "" {
		candidates, err = loadRoster(opts.ConfigPath)
	} else {
		candidates, err = scan(opts.Root)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(candidates))
	for _, p := range candidates {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate participant name %q", p.Name)
		}
		seen[p.Name] = true
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Name < candidates[j].Name
	})

	reg := &Registry{}
	if opts.SkipProbe {
		reg.participants = candidates
		return reg, nil
	}

	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	iv := invoke.New(timeout)

	probeData := opts.ProbeData
	if probeData == "" {
		probeData = defaultProbeData
	}

	for _, p := range candidates {
		out := iv.Invoke(ctx, p, contract.HashRequest(probeData))
		if out.Kind != invoke.Success {
			reason := fmt.Sprintf("%s: %s", out.Kind, out.Message)
			log.Warn().
				Str("participant", p.Name).
				Str("reason", reason).
				Msg("liveness probe failed, participant excluded")
			reg.excluded = append(reg.excluded, Exclusion{Participant: p, Reason: reason})
			continue
		}
		log.Debug().Str("participant", p.Name).Msg("liveness probe passed")
		reg.participants = append(reg.participants, p)
	}
	return reg, nil
}

// loadRoster reads an explicit participant roster. Unlike a scan, a roster
// that cannot be read is a construction error: the caller named it.
func loadRoster(path string) ([]contract.Participant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read participant roster: %w", err)
	}
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse participant roster %s: %w", path, err)
	}
	return f.Participants, nil
}

// scan walks the conventional layout. A missing root yields an empty set:
// no wrappers present is a valid state of the world.
//
// Paths are made absolute before they enter a descriptor. The participant
// runs with Dir set to its own directory, and both os/exec and the script
// interpreters resolve a relative command against that directory, not
// against the harness cwd.
func scan(root string) ([]contract.Participant, error) {
	if root == "" {
		root = DefaultRoot
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve wrapper root: %w", err)
	}
	var out []contract.Participant
	for _, c := range conventions {
		path := filepath.Join(root, c.rel)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		var cmd []string
		if c.runtime != "" {
			cmd = []string{c.runtime, path}
		} else {
			cmd = []string{path}
		}
		out = append(out, contract.Participant{
			Name:    c.name,
			Command: cmd,
			Dir:     filepath.Dir(path),
		})
	}
	return out, nil
}

// Participants returns the live roster in lexicographic name order.
func (r *Registry) Participants() []contract.Participant {
	out := make([]contract.Participant, len(r.participants))
	copy(out, r.participants)
	return out
}

// Excluded returns the candidates dropped by the liveness probe.
func (r *Registry) Excluded() []Exclusion {
	out := make([]Exclusion, len(r.excluded))
	copy(out, r.excluded)
	return out
}

// Names returns the live participant names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.participants))
	for i, p := range r.participants {
		names[i] = p.Name
	}
	return names
}
