package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"deckforge/internal/api"
	"deckforge/internal/config"
	"deckforge/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var format string
	var style string
	var tokenBudget int
	var maxAttempts int

	cmd := &cobra.Command{
		Use:   "submit <document>",
		Short: "Submit a document for conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(cfg *config.Config, svc *api.Service) error {
				settings := queue.Settings{
					Style:       style,
					TokenBudget: tokenBudget,
					MaxAttempts: maxAttempts,
				}
				rawSettings := ""
				if settings != (queue.Settings{}) {
					encoded, err := json.Marshal(settings)
					if err != nil {
						return err
					}
					rawSettings = string(encoded)
				}

				job, err := svc.SubmitJob(cmd.Context(), args[0], format, rawSettings)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"jobId": job.ID})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %d for %s\n", job.ID, job.DocumentRef)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Declared document format (default: file extension)")
	cmd.Flags().StringVar(&style, "style", "", "Deck style hint (skips style inference)")
	cmd.Flags().IntVar(&tokenBudget, "token-budget", 0, "Per-chunk token budget override")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Per-stage attempt ceiling override")
	return cmd
}
