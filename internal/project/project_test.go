package project_test

import (
	"testing"

	"slayer/internal/project"
)

func TestNewAssignsIdentity(t *testing.T) {
	p := project.New("Floor Plan")
	if p.Meta.ID == "" {
		t.Fatal("expected generated project id")
	}
	if p.Meta.Name != "Floor Plan" {
		t.Fatalf("unexpected name: %q", p.Meta.Name)
	}
	if p.Meta.Version != project.FormatVersion {
		t.Fatalf("unexpected version: %q", p.Meta.Version)
	}
	if p.Meta.Created.IsZero() || p.Meta.Modified.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
	other := project.New("Floor Plan")
	if other.Meta.ID == p.Meta.ID {
		t.Fatal("expected unique ids per project")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	p := project.New("clone-me")
	p.Apps["mapping"] = project.AppSlot{
		Active: true,
		Data:   map[string]any{"dots": []any{map[string]any{"x": 1.0, "y": 2.0}}},
	}

	cp, err := p.Clone()
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}
	if cp.Meta.ID != p.Meta.ID {
		t.Fatalf("clone changed identity: %q vs %q", cp.Meta.ID, p.Meta.ID)
	}

	// Mutating the clone must not leak into the original.
	data := cp.Apps["mapping"].Data.(map[string]any)
	data["dots"] = []any{}
	orig := p.Apps["mapping"].Data.(map[string]any)
	if len(orig["dots"].([]any)) != 1 {
		t.Fatal("clone shares data with original")
	}
}

func TestActiveAppNames(t *testing.T) {
	p := project.New("apps")
	p.Apps["b"] = project.AppSlot{Active: true, Data: map[string]any{"k": "v"}}
	p.Apps["a"] = project.AppSlot{Active: true, Data: map[string]any{"k": "v"}}
	p.Apps["inactive"] = project.AppSlot{Active: false, Data: map[string]any{"k": "v"}}
	p.Apps["empty"] = project.AppSlot{Active: true, Data: nil}

	names := p.ActiveAppNames()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("unexpected active app names: %v", names)
	}
}

func TestHasData(t *testing.T) {
	if (project.AppSlot{Active: true}).HasData() {
		t.Fatal("nil data should not count")
	}
	if (project.AppSlot{Active: false, Data: 1}).HasData() {
		t.Fatal("inactive slot should not count")
	}
	if !(project.AppSlot{Active: true, Data: 1}).HasData() {
		t.Fatal("active slot with data should count")
	}
}
