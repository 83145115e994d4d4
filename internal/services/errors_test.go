package services_test

import (
	"errors"
	"strings"
	"testing"

	"slayer/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrFormat, "envelope", "decode", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrFormat) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"envelope", "decode", "failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error message %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "store", "save", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected nil marker to default to ErrTransient, got %v", err)
	}
}

func TestWrapWithoutBaseError(t *testing.T) {
	err := services.Wrap(services.ErrDocumentMissing, "container", "decode", "zero-length document", nil)
	if !errors.Is(err, services.ErrDocumentMissing) {
		t.Fatalf("expected ErrDocumentMissing, got %v", err)
	}
	if strings.Contains(err.Error(), "%!") {
		t.Fatalf("malformed error message: %q", err.Error())
	}
}

func TestIsRecoverable(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		expect bool
	}{
		{"worker unavailable", services.Wrap(services.ErrWorkerUnavailable, "offload", "submit", "", nil), true},
		{"compression unsupported", services.Wrap(services.ErrCompressionUnsupported, "envelope", "encode", "", nil), true},
		{"quota exceeded", services.Wrap(services.ErrQuotaExceeded, "store", "save", "", nil), true},
		{"format", services.Wrap(services.ErrFormat, "envelope", "decode", "", nil), false},
		{"validation", services.Wrap(services.ErrValidation, "envelope", "validate", "", nil), false},
		{"plain", errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := services.IsRecoverable(tc.err); got != tc.expect {
			t.Fatalf("%s: IsRecoverable = %v, want %v", tc.name, got, tc.expect)
		}
	}
}
