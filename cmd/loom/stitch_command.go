package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/blob"
	"loom/internal/config"
	"loom/internal/lease"
	"loom/internal/logging"
	"loom/internal/stitch"
)

func newStitchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stitch <episode-date>",
		Short: "Stitch the episode for a date from its ready segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *lease.Store) error {
				episodeDate := args[0]
				blobs, err := blob.NewFSStoreFromConfig(cfg)
				if err != nil {
					return err
				}

				run, acquired, err := store.ClaimBatchRun(cmd.Context(), cfg.Program.Slug, episodeDate, 1, lease.RunDailyStitch, "cli")
				if err != nil {
					return err
				}
				if !acquired {
					return fmt.Errorf("stitch for %s already %s (run %s)", episodeDate, run.Status, run.ID)
				}

				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return err
				}

				stitcher := stitch.New(cfg, store, blobs, logger)
				result, err := stitcher.StitchEpisode(cmd.Context(), episodeDate)
				if err != nil {
					if failErr := store.FailBatchRun(cmd.Context(), run.ID, err.Error()); failErr != nil {
						return fmt.Errorf("%w (also failed to record run: %v)", err, failErr)
					}
					return err
				}

				output, _ := json.Marshal(result)
				if err := store.CompleteBatchRun(cmd.Context(), run.ID, string(output)); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Stitched %s: %s (%s, %d segments)\n",
					result.EpisodeDate, result.StoragePath,
					formatDuration(result.DurationSeconds), result.SegmentCount)
				return nil
			})
		},
	}
}
