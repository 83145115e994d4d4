package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"slayer/internal/engine"
)

func newAutosaveCommand(ctx *commandContext) *cobra.Command {
	autosaveCmd := &cobra.Command{
		Use:   "autosave",
		Short: "Timer-driven incremental backups",
	}
	autosaveCmd.AddCommand(newAutosaveRunCommand(ctx))
	return autosaveCmd
}

func newAutosaveRunCommand(ctx *commandContext) *cobra.Command {
	var intervalSeconds int

	cmd := &cobra.Command{
		Use:   "run <project-file>",
		Short: "Watch a project file and back up changes on a timer",
		Long: "Runs in the foreground: the project file is watched for external\n" +
			"writes, and every interval the apps that changed since the last\n" +
			"backup are written to the local store. Stop with Ctrl-C.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return ctx.withEngine(args[0], func(eng *engine.Engine, bridge *fileBridge) error {
				if _, err := eng.LoadFile(signalCtx, args[0]); err != nil {
					return err
				}
				if err := bridge.Watch(signalCtx, eng.MarkDirty); err != nil {
					return err
				}
				if err := eng.StartAutoSave(signalCtx); err != nil {
					return err
				}
				if intervalSeconds > 0 {
					eng.ReconfigureAutoSave(signalCtx, time.Duration(intervalSeconds)*time.Second)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Watching %s; press Ctrl-C to stop.\n", args[0])
				<-signalCtx.Done()
				eng.StopAutoSave()

				// Flush whatever accumulated between the last tick and the
				// shutdown signal.
				if eng.Dirty() {
					if _, err := eng.SaveIncremental(cmd.Context()); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "final backup failed: %v\n", err)
					}
				}

				snap := eng.Metrics()
				fmt.Fprintf(out, "Stopped after %d backup(s).\n", snap.IncrementalSaves)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&intervalSeconds, "interval", 0, "Override the configured auto-save interval in seconds")
	return cmd
}
