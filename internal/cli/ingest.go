package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/dmaltsev/takeout-sync/internal/errors"
	"github.com/dmaltsev/takeout-sync/internal/pipeline"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		prune bool
		full  bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Parse watch-history archives and merge them into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []pipeline.Option
			if prune {
				opts = append(opts, pipeline.WithPruneHTML())
			}
			if full {
				opts = append(opts, pipeline.WithFullReparse())
			}

			p, closer, err := a.openPipeline(cmd.Context(), false, opts...)
			if err != nil {
				return err
			}
			defer closer()

			return a.withRun(cmd.Context(), func(run *pipeline.Run) error {
				sum, err := p.Ingest(run, a.cfg.TakeoutDir)
				if err != nil {
					// An empty takeout dir is worth a message, not a
					// failing exit.
					if errors.Is(err, apperrors.ErrNoWatchFiles) {
						a.logger.Info("nothing to ingest",
							slog.String("dir", a.cfg.TakeoutDir))

						return nil
					}

					return fmt.Errorf("ingesting %s: %w", a.cfg.TakeoutDir, err)
				}

				fmt.Fprintf(cmd.OutOrStdout(),
					"Ingested %d files: %d videos, %d new watch events (%d entries failed) in %s\n",
					sum.Files, sum.Videos, sum.NewTimestamps, sum.FailedEntries,
					sum.Elapsed.Round(time.Millisecond))

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&prune, "prune-html", false,
		"rewrite archives with their cleaned content so re-ingests skip cleanup")
	cmd.Flags().BoolVar(&full, "full", false,
		"discard saved file cursors and re-parse every archive from the start")

	return cmd
}
