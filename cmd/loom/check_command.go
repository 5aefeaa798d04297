package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/blob"
	"loom/internal/config"
	"loom/internal/lease"
	"loom/internal/publish"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <episode-date>",
		Short: "Check whether a date's episode is ready to publish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *lease.Store) error {
				episodeDate := args[0]
				blobs, err := blob.NewFSStoreFromConfig(cfg)
				if err != nil {
					return err
				}

				gate := publish.NewGate(cfg, store, blobs)
				err = gate.AssertPublishable(cmd.Context(), episodeDate)
				if err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Episode %s is publishable.\n", episodeDate)
					return nil
				}

				var notReady *publish.NotReadyError
				if !errors.As(err, &notReady) {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Episode %s is NOT publishable:\n", episodeDate)
				for _, key := range notReady.MissingSegments {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s: no job\n", segmentDisplayName(key))
				}
				for _, entry := range notReady.SegmentsNotDone {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", entry)
				}
				if notReady.ArtifactMissing {
					fmt.Fprintln(cmd.OutOrStdout(), "  - episode artifact not found")
				}
				return err
			})
		},
	}
}
