package main

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"slayer/internal/config"
	"slayer/internal/project"
	"slayer/internal/store"
)

func newBackupsCommand(ctx *commandContext) *cobra.Command {
	backupsCmd := &cobra.Command{
		Use:   "backups",
		Short: "Inspect and maintain the local backup store",
	}

	backupsCmd.AddCommand(newBackupsListCommand(ctx))
	backupsCmd.AddCommand(newBackupsShowCommand(ctx))
	backupsCmd.AddCommand(newBackupsDeleteCommand(ctx))
	backupsCmd.AddCommand(newBackupsPruneCommand(ctx))

	return backupsCmd
}

func newBackupsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored incremental backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				entries, err := st.List(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No backups stored.")
					return nil
				}

				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						store.ProjectID(entry.Key),
						entry.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
						fmt.Sprintf("%d", entry.Bytes),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Project", "Updated", "Bytes"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newBackupsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show the newest backup record for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				key := store.AutosaveKey(args[0])
				payload, found, err := st.Load(cmd.Context(), key)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no backup stored for project %s", args[0])
				}

				var record project.IncrementalRecord
				if err := json.Unmarshal(payload, &record); err != nil {
					return fmt.Errorf("decode backup record: %w", err)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, record)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Project: %s\n", record.ProjectID)
				fmt.Fprintf(out, "Saved: %s\n", record.Timestamp.Local().Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "Changed apps: %s\n", joinOrDash(record.ChangedApps))
				fmt.Fprintf(out, "Payload: %d bytes\n", len(payload))
				return nil
			})
		},
	}
}

func newBackupsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete the stored backup for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				if err := st.Delete(cmd.Context(), store.AutosaveKey(args[0])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted backup for project %s\n", args[0])
				return nil
			})
		},
	}
}

func newBackupsPruneCommand(ctx *commandContext) *cobra.Command {
	var maxAgeDays int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove backups older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				days := maxAgeDays
				if days <= 0 {
					days = cfg.AutoSave.PruneMaxAgeDays
				}
				removed, err := st.Prune(cmd.Context(), time.Duration(days)*24*time.Hour)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"removed": removed, "maxAgeDays": days})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d backup(s) older than %d day(s)\n", removed, days)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "Override the configured retention window")
	return cmd
}
