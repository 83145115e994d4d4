package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"slayer/internal/container"
	"slayer/internal/engine"
	"slayer/internal/envelope"
	"slayer/internal/project"
)

type inspectReport struct {
	Path        string         `json:"path"`
	Container   bool           `json:"container"`
	Valid       bool           `json:"valid"`
	Errors      []string       `json:"errors,omitempty"`
	Meta        *project.Meta  `json:"meta,omitempty"`
	Apps        map[string]int `json:"apps,omitempty"`
	DocumentLen int            `json:"documentBytes,omitempty"`
	FileBytes   int64          `json:"fileBytes"`
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "inspect <project-file>",
		Short:       "Validate a project file and show its metadata",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := buildInspectReport(args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			renderInspectReport(cmd, report)
			if !report.Valid {
				return fmt.Errorf("%s failed validation", args[0])
			}
			return nil
		},
	}
	return cmd
}

func buildInspectReport(path string) (*inspectReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	report := &inspectReport{Path: path, FileBytes: int64(len(data))}

	envelopeBytes := data
	if strings.EqualFold(filepath.Ext(path), engine.ContainerExtension) {
		report.Container = true
		metadata, document, err := container.Decode(data)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			return report, nil
		}
		report.DocumentLen = len(document)
		envelopeBytes, err = json.Marshal(metadata)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			return report, nil
		}
	}

	validation := envelope.Validate(envelopeBytes)
	report.Valid = validation.Valid
	report.Errors = append(report.Errors, validation.Errors...)
	if !validation.Valid {
		return report, nil
	}

	env, err := envelope.NewCodec(0, nil).Decode(envelopeBytes)
	if err != nil {
		report.Valid = false
		report.Errors = append(report.Errors, err.Error())
		return report, nil
	}

	report.Meta = &env.Project.Meta
	report.Apps = make(map[string]int, len(env.Project.Apps))
	for name, slot := range env.Project.Apps {
		report.Apps[name] = countItems(slot)
	}
	return report, nil
}

// countItems estimates the record count of one app subtree: page-keyed lists
// count per entry, anything else counts as a single blob.
func countItems(slot project.AppSlot) int {
	doc, ok := slot.Data.(map[string]any)
	if !ok {
		if slot.Data == nil {
			return 0
		}
		return 1
	}
	pages, ok := doc["pages"].(map[string]any)
	if !ok {
		return 1
	}
	items := 0
	for _, page := range pages {
		if list, ok := page.([]any); ok {
			items += len(list)
		} else {
			items++
		}
	}
	return items
}

func renderInspectReport(cmd *cobra.Command, report *inspectReport) {
	out := cmd.OutOrStdout()

	rows := [][]string{
		{"Path", report.Path},
		{"Size", fmt.Sprintf("%d bytes", report.FileBytes)},
		{"Container", yesNo(report.Container)},
		{"Valid", yesNo(report.Valid)},
	}
	if report.Meta != nil {
		rows = append(rows,
			[]string{"Project", report.Meta.Name},
			[]string{"ID", report.Meta.ID},
			[]string{"Version", report.Meta.Version},
			[]string{"Created", report.Meta.Created.Format("2006-01-02 15:04:05")},
			[]string{"Modified", report.Meta.Modified.Format("2006-01-02 15:04:05")},
		)
	}
	if report.DocumentLen > 0 {
		rows = append(rows, []string{"Document", fmt.Sprintf("%d bytes", report.DocumentLen)})
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))

	if len(report.Apps) > 0 {
		names := make([]string, 0, len(report.Apps))
		for name := range report.Apps {
			names = append(names, name)
		}
		sort.Strings(names)
		appRows := make([][]string, 0, len(names))
		for _, name := range names {
			appRows = append(appRows, []string{name, fmt.Sprintf("%d", report.Apps[name])})
		}
		fmt.Fprintln(out, renderTable([]string{"App", "Items"}, appRows, []columnAlignment{alignLeft, alignRight}))
	}

	for _, msg := range report.Errors {
		fmt.Fprintf(out, "error: %s\n", msg)
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
