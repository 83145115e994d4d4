// Package tracker detects which app subtrees changed since the last saved
// baseline and assembles the incremental records written to the local backup
// store.
package tracker

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"slayer/internal/logging"
	"slayer/internal/project"
)

// Tracker owns the diff baseline: a canonical serialization of every saved
// app subtree. The baseline is replaced only at save completion points, via
// Commit or CommitApps, and never read or written by anything else.
type Tracker struct {
	mu       sync.Mutex
	logger   *slog.Logger
	baseline map[string]string
	seeded   bool
}

// New constructs a tracker with no baseline. Until the first commit every
// active app with data is reported as changed.
func New(logger *slog.Logger) *Tracker {
	return &Tracker{
		logger:   logging.NewComponentLogger(logger, "tracker"),
		baseline: map[string]string{},
	}
}

// DetectChangedApps returns the sorted names of app slots whose canonical
// serialization differs from the baseline. With no baseline yet, every
// active slot with data is reported (first-save case).
func (t *Tracker) DetectChangedApps(p *project.Project) ([]string, error) {
	if p == nil {
		return nil, fmt.Errorf("detect changes: nil project")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	changed := make([]string, 0, len(p.Apps))
	for name, slot := range p.Apps {
		if !slot.HasData() {
			continue
		}
		if !t.seeded {
			changed = append(changed, name)
			continue
		}
		current, err := canonicalize(slot.Data)
		if err != nil {
			return nil, fmt.Errorf("serialize app %q: %w", name, err)
		}
		previous, ok := t.baseline[name]
		if !ok || previous != current {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// CreateIncrementalRecord assembles a backup record holding exactly the
// changed apps, pulled from the live project.
func (t *Tracker) CreateIncrementalRecord(p *project.Project, changed []string) (*project.IncrementalRecord, error) {
	if p == nil {
		return nil, fmt.Errorf("incremental record: nil project")
	}
	record := &project.IncrementalRecord{
		Type:        project.IncrementalRecordType,
		ProjectID:   p.Meta.ID,
		Timestamp:   time.Now().UTC(),
		ChangedApps: append([]string(nil), changed...),
		Apps:        make(map[string]project.AppSlot, len(changed)),
	}
	for _, name := range changed {
		slot, ok := p.Apps[name]
		if !ok {
			return nil, fmt.Errorf("incremental record: app %q not present in project", name)
		}
		record.Apps[name] = slot
	}
	return record, nil
}

// Commit replaces the whole baseline with the project's current state.
// Called after a full save completes or after a project load.
func (t *Tracker) Commit(p *project.Project) error {
	if p == nil {
		return fmt.Errorf("commit baseline: nil project")
	}
	next := make(map[string]string, len(p.Apps))
	for name, slot := range p.Apps {
		if !slot.HasData() {
			continue
		}
		canon, err := canonicalize(slot.Data)
		if err != nil {
			return fmt.Errorf("serialize app %q: %w", name, err)
		}
		next[name] = canon
	}

	t.mu.Lock()
	t.baseline = next
	t.seeded = true
	t.mu.Unlock()
	return nil
}

// CommitApps refreshes the baseline for the apps carried by a completed
// incremental save, leaving other entries untouched. Refreshing here keeps
// later diffs from re-reporting apps that were already backed up.
func (t *Tracker) CommitApps(record *project.IncrementalRecord) error {
	if record == nil {
		return fmt.Errorf("commit apps: nil record")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for name, slot := range record.Apps {
		canon, err := canonicalize(slot.Data)
		if err != nil {
			return fmt.Errorf("serialize app %q: %w", name, err)
		}
		t.baseline[name] = canon
	}
	t.seeded = true
	return nil
}

// Seeded reports whether a baseline exists.
func (t *Tracker) Seeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seeded
}

// Reset drops the baseline. The next detection reports every active app, as
// on first save.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.baseline = map[string]string{}
	t.seeded = false
	t.mu.Unlock()
	if t.logger != nil {
		t.logger.Debug("baseline reset")
	}
}

// canonicalize produces a stable serialization for comparison. Map keys sort
// deterministically under JSON marshalling, so equal subtrees always compare
// equal.
func canonicalize(data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
