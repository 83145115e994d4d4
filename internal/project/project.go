package project

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// FormatVersion is the envelope version written by this engine.
const FormatVersion = "2.0"

// Meta carries project identity and bookkeeping. ID is immutable after
// creation; Modified updates on every successful save.
type Meta struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Created    time.Time `json:"created"`
	Modified   time.Time `json:"modified"`
	Version    string    `json:"version"`
	ActiveApps []string  `json:"activeApps"`
}

// AppSlot holds one app's opaque, JSON-serializable data subtree. Slots with
// Active false or Data nil never appear in serialized envelopes.
type AppSlot struct {
	Active bool `json:"active"`
	Data   any  `json:"data"`
}

// HasData reports whether the slot participates in saves.
func (s AppSlot) HasData() bool {
	return s.Active && s.Data != nil
}

// LinkRecord is an opaque cross-app link entry.
type LinkRecord map[string]any

// Project is the in-memory graph of per-app data subtrees. It is mutated in
// place by the editing host and serialized read-only by the engine.
type Project struct {
	Meta      Meta                    `json:"meta"`
	Apps      map[string]AppSlot      `json:"apps"`
	Links     map[string][]LinkRecord `json:"links"`
	Resources map[string]any          `json:"resources"`
}

// New creates a fresh project for an editing session.
func New(name string) *Project {
	now := time.Now().UTC()
	return &Project{
		Meta: Meta{
			ID:         uuid.NewString(),
			Name:       name,
			Created:    now,
			Modified:   now,
			Version:    FormatVersion,
			ActiveApps: []string{},
		},
		Apps:      map[string]AppSlot{},
		Links:     map[string][]LinkRecord{},
		Resources: map[string]any{},
	}
}

// Clone deep-copies the project by marshalling through JSON. App payloads must
// be JSON-safe; values JSON cannot represent are silently dropped, an accepted
// limitation of the data model.
func (p *Project) Clone() (*Project, error) {
	if p == nil {
		return nil, errors.New("nil project")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("clone project: %w", err)
	}
	var out Project
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clone project: %w", err)
	}
	return &out, nil
}

// ActiveAppNames returns the sorted names of app slots that participate in
// saves.
func (p *Project) ActiveAppNames() []string {
	names := make([]string, 0, len(p.Apps))
	for name, slot := range p.Apps {
		if slot.HasData() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Touch bumps the modified timestamp. Called only at successful save
// completion points.
func (p *Project) Touch(at time.Time) {
	p.Meta.Modified = at.UTC()
}
