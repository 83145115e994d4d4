package envelope

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"pgregory.net/rapid"

	"slayer/internal/project"
	"slayer/internal/services"
)

var gzipMagic = []byte{0x1f, 0x8b}

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
}

func newTestCodec(threshold int64) Codec {
	c := NewCodec(threshold, nil)
	c.now = fixedClock
	return c
}

func sampleProject() *project.Project {
	p := project.New("Round Trip")
	p.Apps["mapping"] = project.AppSlot{
		Active: true,
		Data: map[string]any{
			"pages": map[string]any{
				"1": []any{map[string]any{"x": 10.0, "y": 20.0, "label": "A-1"}},
			},
		},
	}
	p.Apps["notes"] = project.AppSlot{Active: true, Data: map[string]any{"text": "hello"}}
	p.Links["dot-note"] = []project.LinkRecord{{"from": "A-1", "to": "n-1"}}
	return p
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := newTestCodec(DefaultCompressionThreshold)
	p := sampleProject()

	raw, err := codec.Encode(p)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	env, err := codec.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.FileType != FileType {
		t.Fatalf("unexpected fileType: %q", env.FileType)
	}
	if env.Project.Meta.ID != p.Meta.ID || env.Project.Meta.Name != p.Meta.Name {
		t.Fatalf("meta not preserved: %+v", env.Project.Meta)
	}
	if !reflect.DeepEqual(canonical(t, env.Project.Apps), canonical(t, p.Apps)) {
		t.Fatalf("apps not preserved:\n got %s\nwant %s", canonical(t, env.Project.Apps), canonical(t, p.Apps))
	}
	if !reflect.DeepEqual(canonical(t, env.Project.Links), canonical(t, p.Links)) {
		t.Fatal("links not preserved")
	}
}

func TestEncodeDropsInactiveAndEmptySlots(t *testing.T) {
	codec := newTestCodec(DefaultCompressionThreshold)
	p := sampleProject()
	p.Apps["disabled"] = project.AppSlot{Active: false, Data: map[string]any{"k": 1.0}}
	p.Apps["hollow"] = project.AppSlot{Active: true, Data: nil}

	raw, err := codec.Encode(p)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	env, err := codec.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if _, ok := env.Project.Apps["disabled"]; ok {
		t.Fatal("inactive slot survived encoding")
	}
	if _, ok := env.Project.Apps["hollow"]; ok {
		t.Fatal("dataless slot survived encoding")
	}
	// Source project must be untouched.
	if _, ok := p.Apps["disabled"]; !ok {
		t.Fatal("encode mutated the live project")
	}
}

func TestCompressionThresholdBoundary(t *testing.T) {
	p := sampleProject()

	probe := newTestCodec(1 << 40)
	raw, err := probe.Encode(p)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	size := int64(len(raw))

	at := newTestCodec(size)
	atBytes, err := at.Encode(p)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if bytes.HasPrefix(atBytes, gzipMagic) {
		t.Fatal("payload exactly at threshold must stay uncompressed")
	}

	below := newTestCodec(size - 1)
	belowBytes, err := below.Encode(p)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.HasPrefix(belowBytes, gzipMagic) {
		t.Fatal("payload above threshold must be compressed")
	}

	// Both variants decode to the same content.
	a, err := at.Decode(atBytes)
	if err != nil {
		t.Fatalf("Decode uncompressed failed: %v", err)
	}
	b, err := below.Decode(belowBytes)
	if err != nil {
		t.Fatalf("Decode compressed failed: %v", err)
	}
	if !reflect.DeepEqual(canonical(t, a.Project.Apps), canonical(t, b.Project.Apps)) {
		t.Fatal("compressed and uncompressed decode disagree")
	}
}

func TestCanvasDataURIRoundTrip(t *testing.T) {
	codec := newTestCodec(DefaultCompressionThreshold)
	uri := "data:image/png;base64,iVBORw0KGgoAAAANSUhEUg=="
	p := project.New("canvas")
	p.Apps["sketch"] = project.AppSlot{
		Active: true,
		Data:   map[string]any{"background": uri, "layers": []any{map[string]any{"overlay": uri}}},
	}

	raw, err := codec.Encode(p)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if bytes.Contains(raw, []byte("data:image/")) {
		t.Fatal("encoded envelope still contains raw data URIs")
	}
	if !bytes.Contains(raw, []byte(canvasRecordType)) {
		t.Fatal("expected canvas records in encoded envelope")
	}

	env, err := codec.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	data := env.Project.Apps["sketch"].Data.(map[string]any)
	if data["background"] != uri {
		t.Fatalf("background URI not restored: %v", data["background"])
	}
	layer := data["layers"].([]any)[0].(map[string]any)
	if layer["overlay"] != uri {
		t.Fatalf("nested URI not restored: %v", layer["overlay"])
	}
}

func TestDecodeLegacyEnvelope(t *testing.T) {
	codec := newTestCodec(DefaultCompressionThreshold)
	legacy := `{
		"type": "slayer_suite_project",
		"projectName": "Old Floor Plan",
		"saved": "2024-06-01T12:00:00Z",
		"version": "1.4",
		"apps": {
			"mapping": {"active": true, "data": {"dots": []}}
		}
	}`
	env, err := codec.Decode([]byte(legacy))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.FileType != FileType {
		t.Fatalf("legacy envelope not normalized: %q", env.FileType)
	}
	if env.Project.Meta.Name != "Old Floor Plan" {
		t.Fatalf("unexpected name: %q", env.Project.Meta.Name)
	}
	if env.Project.Meta.ID == "" {
		t.Fatal("normalization must assign a project id")
	}
	if _, ok := env.Project.Apps["mapping"]; !ok {
		t.Fatal("legacy apps not carried over")
	}
	if got := env.Project.Meta.ActiveApps; len(got) != 1 || got[0] != "mapping" {
		t.Fatalf("unexpected active apps: %v", got)
	}
}

func TestDecodeLegacyEnvelopeMintsStableID(t *testing.T) {
	codec := newTestCodec(DefaultCompressionThreshold)
	legacy := []byte(`{
		"type": "slayer_suite_project",
		"projectName": "Old Floor Plan",
		"saved": "2024-06-01T12:00:00Z",
		"apps": {}
	}`)
	first, err := codec.Decode(legacy)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	second, err := codec.Decode(legacy)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if first.Project.Meta.ID != second.Project.Meta.ID {
		t.Fatalf("legacy id must be stable across loads: %q vs %q", first.Project.Meta.ID, second.Project.Meta.ID)
	}

	renamed := []byte(`{
		"type": "slayer_suite_project",
		"projectName": "New Floor Plan",
		"saved": "2024-06-01T12:00:00Z",
		"apps": {}
	}`)
	other, err := codec.Decode(renamed)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if other.Project.Meta.ID == first.Project.Meta.ID {
		t.Fatalf("distinct legacy projects must not share an id: %q", other.Project.Meta.ID)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	codec := newTestCodec(DefaultCompressionThreshold)
	for _, payload := range [][]byte{nil, []byte("not json at all"), {0x1f, 0x8b, 0xff, 0x00}} {
		_, err := codec.Decode(payload)
		if !errors.Is(err, services.ErrFormat) {
			t.Fatalf("expected ErrFormat for %q, got %v", payload, err)
		}
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	payload := []byte(`{"fileType": "slayer-project", "project": {"meta": {}, "apps": "nope"}}`)
	report := Validate(payload)
	if report.Valid {
		t.Fatal("expected invalid report")
	}
	if len(report.Errors) != 3 {
		t.Fatalf("expected 3 violations, got %v", report.Errors)
	}
}

func TestValidateAcceptsBothShapes(t *testing.T) {
	codec := newTestCodec(DefaultCompressionThreshold)
	raw, err := codec.Encode(sampleProject())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if report := Validate(raw); !report.Valid {
		t.Fatalf("modern envelope should validate: %v", report.Errors)
	}

	legacy := []byte(`{"type": "slayer_suite_project", "projectName": "x", "apps": {}}`)
	if report := Validate(legacy); !report.Valid {
		t.Fatalf("legacy envelope should validate: %v", report.Errors)
	}

	if report := Validate([]byte(`{"fileType": "other"}`)); report.Valid {
		t.Fatal("unknown discriminator should fail validation")
	}
}

func TestRoundTripProperty(t *testing.T) {
	codec := newTestCodec(256)
	rapid.Check(t, func(t *rapid.T) {
		p := project.New(rapid.StringMatching(`[A-Za-z0-9 _-]{1,24}`).Draw(t, "name"))
		appCount := rapid.IntRange(1, 4).Draw(t, "apps")
		for i := 0; i < appCount; i++ {
			name := rapid.StringMatching(`[a-z]{3,10}`).Draw(t, "app")
			fields := rapid.MapOfN(
				rapid.StringMatching(`[a-z]{1,8}`),
				rapid.OneOf(
					rapid.Float64Range(-1e6, 1e6).AsAny(),
					rapid.StringMatching(`[ -~]{0,64}`).AsAny(),
					rapid.Bool().AsAny(),
				),
				1, 8,
			).Draw(t, "fields")
			data := make(map[string]any, len(fields))
			for k, v := range fields {
				data[k] = v
			}
			p.Apps[name] = project.AppSlot{Active: true, Data: data}
		}

		raw, err := codec.Encode(p)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		env, err := codec.Decode(raw)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if env.Project.Meta.ID != p.Meta.ID {
			t.Fatalf("id not preserved: %q vs %q", env.Project.Meta.ID, p.Meta.ID)
		}
		got := canonicalString(env.Project.Apps)
		want := canonicalString(p.Apps)
		if got != want {
			t.Fatalf("apps not preserved:\n got %s\nwant %s", got, want)
		}
	})
}

func canonical(t *testing.T, v any) string {
	t.Helper()
	return canonicalString(v)
}

func canonicalString(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "<marshal error: " + err.Error() + ">"
	}
	return strings.TrimSpace(string(raw))
}
