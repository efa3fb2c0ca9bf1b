package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"deckforge/internal/api"
	"deckforge/internal/config"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Re-enqueue a failed job at the stage that failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(cfg *config.Config, svc *api.Service) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid job id %q", args[0])
				}
				job, err := svc.RetryJob(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"jobId": job.ID, "stage": string(job.Stage)})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d re-enqueued at %s\n", job.ID, job.Stage)
				return nil
			})
		},
	}
}
