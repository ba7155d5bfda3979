package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	apperrors "github.com/dmaltsev/takeout-sync/internal/errors"
	"github.com/dmaltsev/takeout-sync/internal/pipeline"
	"github.com/dmaltsev/takeout-sync/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the takeout directory and ingest new archives as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []pipeline.Option
			if prune {
				opts = append(opts, pipeline.WithPruneHTML())
			}

			p, closer, err := a.openPipeline(cmd.Context(), false, opts...)
			if err != nil {
				return err
			}
			defer closer()

			trigger := func(ctx context.Context) error {
				return a.withRun(ctx, func(run *pipeline.Run) error {
					sum, err := p.Ingest(run, a.cfg.TakeoutDir)
					if err != nil {
						if errors.Is(err, apperrors.ErrNoWatchFiles) {
							return nil
						}

						return err
					}

					a.logger.Info("triggered ingest finished",
						slog.Int("files", sum.Files),
						slog.Int("new_timestamps", sum.NewTimestamps))

					return nil
				})
			}

			w := watcher.New(a.cfg.TakeoutDir, trigger, a.logger)

			err = w.Watch(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return err
		},
	}

	cmd.Flags().BoolVar(&prune, "prune-html", false,
		"rewrite archives with their cleaned content so re-ingests skip cleanup")

	return cmd
}
