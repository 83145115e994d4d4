package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInspectValidFile(t *testing.T) {
	configPath := writeTestConfig(t)
	dir := t.TempDir()

	if _, _, err := runCLI(t, []string{"new", "inspectable", "--dir", dir, "--app", "mapping"}, configPath); err != nil {
		t.Fatalf("new: %v", err)
	}

	out, _, err := runCLI(t, []string{"inspect", filepath.Join(dir, "inspectable.slayer")}, configPath)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	requireContains(t, out, "inspectable")
	requireContains(t, out, "yes")
	requireContains(t, out, "mapping")
}

func TestInspectRejectsGarbage(t *testing.T) {
	configPath := writeTestConfig(t)
	path := filepath.Join(t.TempDir(), "broken.slayer")
	if err := os.WriteFile(path, []byte("not a project"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	out, _, err := runCLI(t, []string{"inspect", path}, configPath)
	if err == nil {
		t.Fatal("inspect of garbage must fail")
	}
	requireContains(t, out, "error:")
}

func TestInspectJSONOutput(t *testing.T) {
	configPath := writeTestConfig(t)
	dir := t.TempDir()

	if _, _, err := runCLI(t, []string{"new", "jsonout", "--dir", dir}, configPath); err != nil {
		t.Fatalf("new: %v", err)
	}

	out, _, err := runCLI(t, []string{"--json", "inspect", filepath.Join(dir, "jsonout.slayer")}, configPath)
	if err != nil {
		t.Fatalf("inspect --json: %v", err)
	}
	requireContains(t, out, `"valid": true`)
}
