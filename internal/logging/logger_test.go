package logging

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"slayer/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewCreatesFileOutput(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Options{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{filepath.Join(dir, "logs", "slayer.log")},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("hello", String("component", "test"))
}

func TestParseLevelDefaults(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"unknown": slog.LevelInfo,
	}
	for input, expected := range cases {
		if got := parseLevel(input); got != expected {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, expected)
		}
	}
}

func TestWithContextStampsFields(t *testing.T) {
	ctx := services.WithProjectID(context.Background(), "p-1")
	ctx = services.WithPhase(ctx, "encoding")
	logger := WithContext(ctx, NewNop())
	if logger == nil {
		t.Fatal("expected logger")
	}
	// nil logger and nil context both degrade to usable loggers
	if WithContext(context.Background(), nil) == nil {
		t.Fatal("expected fallback logger")
	}
}

func TestNewComponentLogger(t *testing.T) {
	if NewComponentLogger(nil, "store") == nil {
		t.Fatal("expected component logger from nil base")
	}
}
