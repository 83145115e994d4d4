package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"slayer/internal/engine"
	"slayer/internal/project"
)

func newNewCommand(ctx *commandContext) *cobra.Command {
	var dir string
	var apps []string

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a fresh project file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine("", func(eng *engine.Engine, bridge *fileBridge) error {
				p := project.New(args[0])
				for _, app := range apps {
					name := strings.TrimSpace(app)
					if name == "" {
						continue
					}
					p.Apps[name] = project.AppSlot{
						Active: true,
						Data:   map[string]any{"pages": map[string]any{}},
					}
				}
				p.Meta.ActiveApps = p.ActiveAppNames()
				bridge.SetProject(p)

				outcome, err := eng.SaveProject(cmd.Context(), dir)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, outcome)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%d bytes)\n", outcome.Path, outcome.Bytes)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory for the new project file")
	cmd.Flags().StringSliceVar(&apps, "app", nil, "Activate an app slot (repeatable)")
	return cmd
}

func newSaveCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var documentPath string

	cmd := &cobra.Command{
		Use:   "save <project-file>",
		Short: "Re-save a project file, normalizing legacy formats",
		Long: "Reads a project file, refreshes its envelope, and writes it back out.\n" +
			"With --document the project is packed together with the document bytes\n" +
			"into a combined container file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(args[0], func(eng *engine.Engine, bridge *fileBridge) error {
				if _, err := eng.LoadFile(cmd.Context(), args[0]); err != nil {
					return err
				}

				var (
					outcome *engine.SaveOutcome
					err     error
				)
				if strings.TrimSpace(documentPath) != "" {
					document, readErr := os.ReadFile(documentPath)
					if readErr != nil {
						return fmt.Errorf("read document %s: %w", documentPath, readErr)
					}
					outcome, err = eng.SaveContainer(cmd.Context(), document, outDir)
				} else {
					outcome, err = eng.SaveProject(cmd.Context(), outDir)
				}
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, outcome)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", outcome.Path, outcome.Bytes)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	cmd.Flags().StringVar(&documentPath, "document", "", "Pack the project with this document into a container file")
	return cmd
}

func newLoadCommand(ctx *commandContext) *cobra.Command {
	var extractPath string

	cmd := &cobra.Command{
		Use:   "load <project-file>",
		Short: "Load a project file and report what the host accepted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(args[0], func(eng *engine.Engine, bridge *fileBridge) error {
				outcome, err := eng.LoadFile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if strings.TrimSpace(extractPath) != "" {
					if len(outcome.Document) == 0 {
						return fmt.Errorf("%s carries no embedded document to extract", args[0])
					}
					if err := os.WriteFile(extractPath, outcome.Document, 0o644); err != nil {
						return fmt.Errorf("extract document to %s: %w", extractPath, err)
					}
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{
						"project":  outcome.Project.Meta,
						"loaded":   outcome.Result.Loaded,
						"skipped":  outcome.Result.Skipped,
						"errors":   outcome.Result.Errors,
						"document": len(outcome.Document),
					})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Loaded %q (%s)\n", outcome.Project.Meta.Name, outcome.Project.Meta.ID)
				fmt.Fprintf(out, "Apps accepted: %s\n", joinOrDash(outcome.Result.Loaded))
				if len(outcome.Result.Skipped) > 0 {
					fmt.Fprintf(out, "Apps skipped: %s\n", strings.Join(outcome.Result.Skipped, ", "))
				}
				if len(outcome.Document) > 0 {
					fmt.Fprintf(out, "Embedded document: %d bytes\n", len(outcome.Document))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&extractPath, "extract", "", "Write the embedded container document to this path")
	return cmd
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
