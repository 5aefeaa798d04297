package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"loom/internal/config"
	"loom/internal/lease"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts and recent batch runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *lease.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Program: %s\n\n", cfg.Program.Slug)
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Jobs"},
					[][]string{
						{"Pending", strconv.Itoa(stats.Pending)},
						{"Generating", strconv.Itoa(stats.Generating)},
						{"Ready", strconv.Itoa(stats.Ready)},
						{"Failed", strconv.Itoa(stats.Failed)},
						{"Total", strconv.Itoa(stats.Total)},
					},
					[]columnAlignment{alignLeft, alignRight},
				))

				runs, err := store.BatchRunsByKind(cmd.Context(), lease.RunDailyStitch, 5)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					return nil
				}

				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					claimed := run.ClaimedAt
					rows = append(rows, []string{
						run.StartDate,
						string(run.Status),
						run.TriggeredBy,
						formatTimestamp(&claimed),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Stitch Date", "Status", "Triggered By", "Claimed"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}
