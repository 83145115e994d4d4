package project

// Bridge is the engine's view of the editing host. The host supplies the live
// project for serialization and accepts decoded projects on load; everything
// else about it is out of scope here.
type Bridge interface {
	// ProjectData returns the live project. The engine treats the result as
	// read-only except for the Modified timestamp bump at save completion.
	ProjectData() (*Project, error)
	// LoadProjectData hands a decoded project to the host and reports which
	// app subtrees it accepted.
	LoadProjectData(*Project) (LoadResult, error)
}

// LoadResult summarizes what the host did with a loaded project.
type LoadResult struct {
	Loaded  []string          `json:"loaded"`
	Skipped []string          `json:"skipped"`
	Errors  map[string]string `json:"errors,omitempty"`
}
