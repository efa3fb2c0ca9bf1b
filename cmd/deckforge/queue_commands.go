package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"deckforge/internal/api"
	"deckforge/internal/config"
	"deckforge/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the job queue",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var stageFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(cfg *config.Config, svc *api.Service) error {
				var stages []queue.Stage
				if stageFilter != "" {
					st, ok := queue.ParseStage(stageFilter)
					if !ok {
						return fmt.Errorf("unknown stage %q", stageFilter)
					}
					stages = append(stages, st)
				}

				jobs, err := svc.ListJobs(cmd.Context(), stages...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, jobs)
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					detail := job.Title
					if job.Error != nil {
						detail = job.Error.Kind
					}
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.Stage,
						job.DocumentRef,
						detail,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Stage", "Document", "Detail"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&stageFilter, "stage", "", "Only show jobs at this stage")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove succeeded, failed, and cancelled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(cfg *config.Config, svc *api.Service) error {
				removed, err := svc.ClearTerminal(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d terminal jobs\n", removed)
				return nil
			})
		},
	}
}
