package envelope

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Report lists every validation violation found, not just the first.
type Report struct {
	Valid  bool
	Errors []string
}

func (r *Report) add(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Validate checks envelope bytes against the format contract. Both the
// modern and the legacy suite shape are accepted. Gzip payloads are
// decompressed before inspection.
func Validate(data []byte) Report {
	report := Report{}

	doc, err := parseGeneric(data)
	if err != nil {
		report.add("payload is not a JSON document: %v", err)
		return report
	}

	if doc["fileType"] == FileType {
		validateModern(doc, &report)
	} else if doc["type"] == LegacyType {
		validateLegacy(doc, &report)
	} else {
		report.add("unrecognized file type: fileType=%v type=%v", doc["fileType"], doc["type"])
	}

	report.Valid = len(report.Errors) == 0
	return report
}

func parseGeneric(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	raw, gzErr := decompress(data)
	if gzErr != nil {
		return nil, fmt.Errorf("neither JSON nor gzip")
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func validateModern(doc map[string]any, report *Report) {
	proj, ok := doc["project"].(map[string]any)
	if !ok {
		report.add("project section missing")
		return
	}
	meta, ok := proj["meta"].(map[string]any)
	if !ok {
		report.add("project.meta missing")
	} else {
		if s, _ := meta["id"].(string); s == "" {
			report.add("project.meta.id missing")
		}
		if s, _ := meta["name"].(string); s == "" {
			report.add("project.meta.name missing")
		}
	}
	if _, ok := proj["apps"].(map[string]any); !ok {
		report.add("project.apps is not a mapping")
	}
}

func validateLegacy(doc map[string]any, report *Report) {
	if s, _ := doc["projectName"].(string); s == "" {
		report.add("projectName missing")
	}
	if _, ok := doc["apps"].(map[string]any); !ok {
		report.add("apps is not a mapping")
	}
}
