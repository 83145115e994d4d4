package tracker_test

import (
	"reflect"
	"testing"

	"slayer/internal/project"
	"slayer/internal/tracker"
)

func buildProject() *project.Project {
	p := project.New("tracked")
	p.Apps["mapping"] = project.AppSlot{Active: true, Data: map[string]any{"dots": []any{1.0, 2.0}}}
	p.Apps["notes"] = project.AppSlot{Active: true, Data: map[string]any{"text": "hi"}}
	p.Apps["idle"] = project.AppSlot{Active: false, Data: map[string]any{"x": 1.0}}
	return p
}

func TestFirstSaveReportsAllActiveApps(t *testing.T) {
	tr := tracker.New(nil)
	p := buildProject()

	changed, err := tr.DetectChangedApps(p)
	if err != nil {
		t.Fatalf("DetectChangedApps failed: %v", err)
	}
	if !reflect.DeepEqual(changed, []string{"mapping", "notes"}) {
		t.Fatalf("unexpected changed apps: %v", changed)
	}
}

func TestSingleMutationDetected(t *testing.T) {
	tr := tracker.New(nil)
	p := buildProject()
	if err := tr.Commit(p); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	changed, err := tr.DetectChangedApps(p)
	if err != nil {
		t.Fatalf("DetectChangedApps failed: %v", err)
	}
	if len(changed) != 0 {
		t.Fatalf("clean project should report no changes, got %v", changed)
	}

	p.Apps["notes"] = project.AppSlot{Active: true, Data: map[string]any{"text": "edited"}}
	changed, err = tr.DetectChangedApps(p)
	if err != nil {
		t.Fatalf("DetectChangedApps failed: %v", err)
	}
	if !reflect.DeepEqual(changed, []string{"notes"}) {
		t.Fatalf("expected exactly [notes], got %v", changed)
	}
}

func TestNewAppDetected(t *testing.T) {
	tr := tracker.New(nil)
	p := buildProject()
	if err := tr.Commit(p); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	p.Apps["calc"] = project.AppSlot{Active: true, Data: map[string]any{"total": 7.0}}

	changed, err := tr.DetectChangedApps(p)
	if err != nil {
		t.Fatalf("DetectChangedApps failed: %v", err)
	}
	if !reflect.DeepEqual(changed, []string{"calc"}) {
		t.Fatalf("expected [calc], got %v", changed)
	}
}

func TestIncrementalRecordHoldsExactlyChangedApps(t *testing.T) {
	tr := tracker.New(nil)
	p := buildProject()

	record, err := tr.CreateIncrementalRecord(p, []string{"mapping"})
	if err != nil {
		t.Fatalf("CreateIncrementalRecord failed: %v", err)
	}
	if record.Type != project.IncrementalRecordType {
		t.Fatalf("unexpected record type: %q", record.Type)
	}
	if record.ProjectID != p.Meta.ID {
		t.Fatalf("unexpected project id: %q", record.ProjectID)
	}
	if len(record.Apps) != 1 {
		t.Fatalf("record must hold exactly the changed apps, got %v", record.Apps)
	}
	if _, ok := record.Apps["mapping"]; !ok {
		t.Fatal("changed app missing from record")
	}
	if !reflect.DeepEqual(record.ChangedApps, []string{"mapping"}) {
		t.Fatalf("unexpected changed list: %v", record.ChangedApps)
	}
}

func TestCreateIncrementalRecordRejectsUnknownApp(t *testing.T) {
	tr := tracker.New(nil)
	if _, err := tr.CreateIncrementalRecord(buildProject(), []string{"ghost"}); err == nil {
		t.Fatal("expected error for unknown app")
	}
}

func TestCommitAppsRefreshesOnlyCarriedApps(t *testing.T) {
	tr := tracker.New(nil)
	p := buildProject()
	if err := tr.Commit(p); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	p.Apps["mapping"] = project.AppSlot{Active: true, Data: map[string]any{"dots": []any{9.0}}}
	p.Apps["notes"] = project.AppSlot{Active: true, Data: map[string]any{"text": "dirty"}}

	record, err := tr.CreateIncrementalRecord(p, []string{"mapping"})
	if err != nil {
		t.Fatalf("CreateIncrementalRecord failed: %v", err)
	}
	if err := tr.CommitApps(record); err != nil {
		t.Fatalf("CommitApps failed: %v", err)
	}

	changed, err := tr.DetectChangedApps(p)
	if err != nil {
		t.Fatalf("DetectChangedApps failed: %v", err)
	}
	if !reflect.DeepEqual(changed, []string{"notes"}) {
		t.Fatalf("expected [notes] to stay dirty, got %v", changed)
	}
}

func TestResetRestoresFirstSaveBehaviour(t *testing.T) {
	tr := tracker.New(nil)
	p := buildProject()
	if err := tr.Commit(p); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if !tr.Seeded() {
		t.Fatal("expected seeded tracker after commit")
	}
	tr.Reset()
	if tr.Seeded() {
		t.Fatal("expected unseeded tracker after reset")
	}
	changed, err := tr.DetectChangedApps(p)
	if err != nil {
		t.Fatalf("DetectChangedApps failed: %v", err)
	}
	if len(changed) != 2 {
		t.Fatalf("expected all active apps after reset, got %v", changed)
	}
}
