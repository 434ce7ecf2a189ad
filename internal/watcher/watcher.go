// Package watcher triggers a rerun when wrapper files change on disk.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// debounceDefault is the default debounce interval for file events.
const debounceDefault = 200 * time.Millisecond

// pollDefault is the default polling interval when fsnotify is unavailable.
const pollDefault = 5 * time.Second

// Watcher watches the participant root with fsnotify. Events are debounced
// with a single timer, so a rebuild touching many files triggers one call
// to the handler with the batch of changed paths.
type Watcher struct {
	root     string
	handler  func(changed []string)
	debounce time.Duration
}

// New creates a watcher over the participant root.
func New(root string, handler func(changed []string)) *Watcher {
	return &Watcher{
		root:     root,
		handler:  handler,
		debounce: debounceDefault,
	}
}

// Run watches the root and its participant directories. Blocks until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.root); err != nil {
		return err
	}
	// fsnotify does not recurse. Wrappers live one level down, so watch
	// each participant directory too; new ones are added as they appear.
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := fw.Add(filepath.Join(w.root, e.Name())); err != nil {
				return err
			}
		}
	}

	var mu sync.Mutex
	ready := make(map[string]bool)

	// flush hands all debounced paths to the handler in one batch.
	flush := func() {
		mu.Lock()
		batch := make([]string, 0, len(ready))
		for p := range ready {
			batch = append(batch, p)
		}
		ready = make(map[string]bool)
		mu.Unlock()

		if len(batch) == 0 {
			return
		}
		sort.Strings(batch)
		w.handler(batch)
	}

	// Single debounce timer, reset on each event. Initialized as stopped;
	// the first event starts it.
	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounceTimer.C:
			flush()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					_ = fw.Add(event.Name)
				}
			}
			if !relevant(event) {
				continue
			}

			mu.Lock()
			ready[event.Name] = true
			mu.Unlock()

			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watch error")
		}
	}
}

// relevant filters events down to content changes on wrapper files. Chmod
// noise, dotfiles and .tmp partial writes do not trigger a rerun.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return relevantName(event.Name)
}

func relevantName(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && !strings.HasSuffix(base, ".tmp")
}

// PollWatcher detects changes by rescanning the tree on an interval. Used
// as a fallback when fsnotify is unavailable (e.g. NFS).
type PollWatcher struct {
	root     string
	handler  func(changed []string)
	interval time.Duration
	seen     map[string]string
}

// NewPoll creates a polling-based watcher.
func NewPoll(root string, handler func(changed []string), interval time.Duration) *PollWatcher {
	if interval <= 0 {
		interval = pollDefault
	}
	return &PollWatcher{
		root:     root,
		handler:  handler,
		interval: interval,
		seen:     make(map[string]string),
	}
}

// Run polls the root. Blocks until ctx is cancelled.
func (w *PollWatcher) Run(ctx context.Context) error {
	// Prime the baseline so a steady tree does not trigger a rerun.
	w.scan(false)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.scan(true)
		}
	}
}

// scan fingerprints the root and its participant directories and reports
// paths whose size or mtime moved since the last scan.
func (w *PollWatcher) scan(notify bool) {
	current := make(map[string]string)
	w.collect(w.root, current, true)

	var changed []string
	for p, fp := range current {
		if w.seen[p] != fp {
			changed = append(changed, p)
		}
	}
	for p := range w.seen {
		if _, ok := current[p]; !ok {
			changed = append(changed, p)
		}
	}
	w.seen = current

	if notify && len(changed) > 0 {
		sort.Strings(changed)
		w.handler(changed)
	}
}

func (w *PollWatcher) collect(dir string, current map[string]string, descend bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if descend && relevantName(path) {
				w.collect(path, current, false)
			}
			continue
		}
		if !relevantName(path) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		current[path] = fmt.Sprintf("%d/%d", fi.Size(), fi.ModTime().UnixNano())
	}
}
