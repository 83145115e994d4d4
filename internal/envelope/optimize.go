package envelope

import (
	"strings"

	"slayer/internal/project"
)

// canvasRecordType tags image payloads whose data-URI scheme text has been
// stripped for storage. The {type, format, mediaType, data} shape is
// reserved: an app map that happens to match it is rewritten into a data
// URI on decode, so app payloads must not use this type value for records
// of their own.
const canvasRecordType = "compressed-canvas"

const dataURIPrefix = "data:image/"

// optimize deep-copies the project, drops app slots that do not participate
// in saves, and rewrites embedded image data URIs into compact canvas
// records.
func optimize(p *project.Project) (*project.Project, error) {
	cp, err := p.Clone()
	if err != nil {
		return nil, err
	}
	for name, slot := range cp.Apps {
		if !slot.HasData() {
			delete(cp.Apps, name)
			continue
		}
		slot.Data = compactCanvasValues(slot.Data)
		cp.Apps[name] = slot
	}
	if cp.Resources != nil {
		for key, value := range cp.Resources {
			cp.Resources[key] = compactCanvasValues(value)
		}
	}
	return cp, nil
}

// restoreCanvasData reverses the canvas transform in place after decode.
func restoreCanvasData(p *project.Project) {
	if p == nil {
		return
	}
	for name, slot := range p.Apps {
		slot.Data = expandCanvasValues(slot.Data)
		p.Apps[name] = slot
	}
	for key, value := range p.Resources {
		p.Resources[key] = expandCanvasValues(value)
	}
}

func compactCanvasValues(v any) any {
	switch value := v.(type) {
	case string:
		if record, ok := compactDataURI(value); ok {
			return record
		}
		return value
	case map[string]any:
		for k, item := range value {
			value[k] = compactCanvasValues(item)
		}
		return value
	case []any:
		for i, item := range value {
			value[i] = compactCanvasValues(item)
		}
		return value
	default:
		return value
	}
}

func expandCanvasValues(v any) any {
	switch value := v.(type) {
	case map[string]any:
		if uri, ok := expandCanvasRecord(value); ok {
			return uri
		}
		for k, item := range value {
			value[k] = expandCanvasValues(item)
		}
		return value
	case []any:
		for i, item := range value {
			value[i] = expandCanvasValues(item)
		}
		return value
	default:
		return value
	}
}

func compactDataURI(s string) (map[string]any, bool) {
	if !strings.HasPrefix(s, dataURIPrefix) {
		return nil, false
	}
	header, payload, found := strings.Cut(s, ";base64,")
	if !found || payload == "" {
		return nil, false
	}
	mediaType := strings.TrimPrefix(header, "data:")
	return map[string]any{
		"type":      canvasRecordType,
		"format":    "base64",
		"mediaType": mediaType,
		"data":      payload,
	}, true
}

func expandCanvasRecord(m map[string]any) (string, bool) {
	if m["type"] != canvasRecordType || m["format"] != "base64" {
		return "", false
	}
	mediaType, ok := m["mediaType"].(string)
	if !ok || mediaType == "" {
		return "", false
	}
	payload, ok := m["data"].(string)
	if !ok {
		return "", false
	}
	return "data:" + mediaType + ";base64," + payload, true
}
