package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"loom/internal/config"
	"loom/internal/lease"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage segment audio jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsRequeueCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *lease.Store) error {
				var jobs []*lease.Job
				if statusFlag != "" {
					status, ok := lease.ParseJobStatus(statusFlag)
					if !ok {
						return fmt.Errorf("unknown status %q", statusFlag)
					}
					var err error
					jobs, err = store.JobsByStatus(cmd.Context(), status)
					if err != nil {
						return err
					}
				} else {
					for _, status := range lease.AllJobStatuses() {
						batch, err := store.JobsByStatus(cmd.Context(), status)
						if err != nil {
							return err
						}
						jobs = append(jobs, batch...)
					}
				}

				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.EpisodeDate,
						segmentDisplayName(job.SegmentKey),
						string(job.Status),
						strconv.Itoa(job.AttemptCount),
						formatDuration(job.AudioDurationSeconds),
						formatJobError(job),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Date", "Segment", "Status", "Attempts", "Duration", "Last Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (pending, generating, ready, failed)")
	return cmd
}

func newJobsRequeueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <episode-id> <segment-key>",
		Short: "Re-arm a failed job for a fresh attempt cycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *lease.Store) error {
				episodeID, segmentKey := args[0], args[1]
				job, err := store.GetJob(cmd.Context(), episodeID, segmentKey)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("no job for %s/%s", episodeID, segmentKey)
				}

				script := lease.SegmentScript{
					EpisodeID:     job.EpisodeID,
					SegmentKey:    job.SegmentKey,
					Program:       job.Program,
					EpisodeDate:   job.EpisodeDate,
					ScriptVersion: job.ScriptVersion,
					ScriptText:    job.ScriptText,
					VoiceID:       job.VoiceID,
					ModelID:       job.ModelID,
				}
				requeued, err := store.MarkPending(cmd.Context(), script)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %s/%s (script v%d)\n",
					requeued.EpisodeID, requeued.SegmentKey, requeued.ScriptVersion)
				return nil
			})
		},
	}
}
