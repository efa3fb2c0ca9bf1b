package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"deckforge/internal/api"
	"deckforge/internal/config"
	"deckforge/internal/preflight"
	"deckforge/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show job status, or overall system status without an id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(cfg *config.Config, svc *api.Service) error {
				if len(args) == 1 {
					id, err := strconv.ParseInt(args[0], 10, 64)
					if err != nil {
						return fmt.Errorf("invalid job id %q", args[0])
					}
					return renderJobStatus(cmd, ctx, svc, id)
				}
				return renderSystemStatus(cmd, ctx, cfg, svc)
			})
		},
	}
}

func renderJobStatus(cmd *cobra.Command, ctx *commandContext, svc *api.Service, id int64) error {
	status, err := svc.GetJobStatus(cmd.Context(), id)
	if err != nil {
		return err
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, status)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %d: %s (%s)\n", status.ID, status.Stage, status.DocumentRef)
	if status.Title != "" {
		fmt.Fprintf(out, "Title: %s\n", status.Title)
	}
	if status.ArtifactRef != "" {
		fmt.Fprintf(out, "Artifact: %s\n", status.ArtifactRef)
	}
	if status.Error != nil {
		fmt.Fprintf(out, "Error: %s at %s", status.Error.Kind, status.Error.Stage)
		if status.Error.Message != "" {
			fmt.Fprintf(out, " (%s)", status.Error.Message)
		}
		fmt.Fprintln(out)
	}

	rows := make([][]string, 0, 3)
	for _, st := range queue.WorkStages() {
		name := string(st)
		timing := status.Timings[name]
		rows = append(rows, []string{
			name,
			strconv.Itoa(status.AttemptCounts[name]),
			formatTimestamp(timing.StartedAt),
			formatDuration(timing.StartedAt, timing.CompletedAt),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Stage", "Attempts", "Started", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight},
	))
	return nil
}

func renderSystemStatus(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, svc *api.Service) error {
	stats, err := svc.Stats(cmd.Context())
	if err != nil {
		return err
	}
	checks := preflight.RunAll(cmd.Context(), cfg)

	if ctx.jsonOutput() {
		counts := make(map[string]int, len(stats))
		for st, count := range stats {
			counts[string(st)] = count
		}
		return writeJSON(cmd, map[string]any{"queue": counts, "preflight": checks})
	}

	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(stats))
	for _, st := range queue.AllStages() {
		if count, ok := stats[st]; ok {
			rows = append(rows, []string{string(st), strconv.Itoa(count)})
		}
	}
	fmt.Fprintln(out, renderTable([]string{"Stage", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight}))

	checkRows := make([][]string, 0, len(checks))
	for _, check := range checks {
		state := "FAIL"
		if check.Passed {
			state = "OK"
		}
		checkRows = append(checkRows, []string{check.Name, state, check.Detail})
	}
	fmt.Fprintln(out, renderTable([]string{"Check", "State", "Detail"}, checkRows, nil))
	return nil
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatDuration(start, end *time.Time) string {
	if start == nil || end == nil {
		return "-"
	}
	return end.Sub(*start).Round(time.Millisecond).String()
}
