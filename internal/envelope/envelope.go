package envelope

import (
	"time"

	"github.com/google/uuid"

	"slayer/internal/project"
)

const (
	// FileType is the discriminator written to every envelope.
	FileType = "slayer-project"
	// LegacyType is the discriminator of the accepted-on-load legacy shape.
	LegacyType = "slayer_suite_project"
)

// Envelope is the top-level versioned wrapper written to a .slayer file.
type Envelope struct {
	FileType string           `json:"fileType"`
	Version  string           `json:"version"`
	Created  time.Time        `json:"created"`
	Project  *project.Project `json:"project"`
}

// legacyEnvelope is the flat suite-era shape. It is normalized into the
// modern in-memory form on load and never written.
type legacyEnvelope struct {
	Type        string                     `json:"type"`
	ProjectName string                     `json:"projectName"`
	Saved       time.Time                  `json:"saved"`
	Version     string                     `json:"version"`
	Apps        map[string]project.AppSlot `json:"apps"`
}

// legacyIDNamespace scopes the name-based ids minted for legacy envelopes,
// which carry no id of their own. Deriving the id from projectName+saved
// keeps repeated loads of the same file on one backup lineage.
var legacyIDNamespace = uuid.MustParse("6f1c2a54-88f3-4b9e-9a07-3d54cf10b2e1")

func (l *legacyEnvelope) projectID() string {
	name := l.ProjectName + "|" + l.Saved.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(legacyIDNamespace, []byte(name)).String()
}

func (l *legacyEnvelope) normalize() *Envelope {
	apps := l.Apps
	if apps == nil {
		apps = map[string]project.AppSlot{}
	}
	p := &project.Project{
		Meta: project.Meta{
			ID:       l.projectID(),
			Name:     l.ProjectName,
			Created:  l.Saved,
			Modified: l.Saved,
			Version:  l.Version,
		},
		Apps:      apps,
		Links:     map[string][]project.LinkRecord{},
		Resources: map[string]any{},
	}
	p.Meta.ActiveApps = p.ActiveAppNames()
	return &Envelope{
		FileType: FileType,
		Version:  l.Version,
		Created:  l.Saved,
		Project:  p,
	}
}
