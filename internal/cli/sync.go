package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmaltsev/takeout-sync/internal/pipeline"
)

func newSyncCmd(a *app) *cobra.Command {
	var cutoff time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh stored video metadata from the YouTube Data API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closer, err := a.openPipeline(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closer()

			if !cmd.Flags().Changed("cutoff") {
				cutoff = a.cfg.Cutoff
			}

			return a.withRun(cmd.Context(), func(run *pipeline.Run) error {
				sum, err := p.Sync(run, cutoff)
				if err != nil {
					return fmt.Errorf("syncing: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(),
					"Checked %d videos: %d updated, %d newly active, %d newly inactive, %d failed in %s\n",
					sum.Checked, sum.Updated, sum.NewlyActive, sum.NewlyInactive, sum.Failed,
					sum.Elapsed.Round(time.Millisecond))

				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&cutoff, "cutoff", 24*time.Hour,
		"re-check videos whose metadata is older than this (Go duration, e.g. 24h)")

	return cmd
}
