package testsupport

import (
	"fmt"
	"testing"

	"slayer/internal/project"
)

// NewProject builds a project with one small active app, enough for most
// engine tests.
func NewProject(t testing.TB, name string) *project.Project {
	t.Helper()

	p := project.New(name)
	p.Apps["mapping"] = project.AppSlot{
		Active: true,
		Data:   map[string]any{"pages": map[string]any{"1": []any{}}},
	}
	p.Meta.ActiveApps = p.ActiveAppNames()
	return p
}

// SyntheticPages produces page-keyed record lists: pages numbered from 1,
// each holding itemsPerPage synthetic dot records. Used to drive the
// chunked-collection path.
func SyntheticPages(pages, itemsPerPage int) map[string]any {
	out := make(map[string]any, pages)
	for page := 1; page <= pages; page++ {
		items := make([]any, 0, itemsPerPage)
		for i := 0; i < itemsPerPage; i++ {
			items = append(items, map[string]any{
				"id": fmt.Sprintf("dot-%d-%d", page, i),
				"x":  float64(i),
				"y":  float64(page),
			})
		}
		out[fmt.Sprintf("%d", page)] = items
	}
	return map[string]any{"pages": out}
}
