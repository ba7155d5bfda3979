// Package cli is the takeout-sync command tree: ingest, sync, status,
// and watch.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmaltsev/takeout-sync/internal/config"
	"github.com/dmaltsev/takeout-sync/internal/logging"
	"github.com/dmaltsev/takeout-sync/internal/pipeline"
	"github.com/dmaltsev/takeout-sync/internal/progress"
	"github.com/dmaltsev/takeout-sync/internal/reconcile"
	"github.com/dmaltsev/takeout-sync/internal/state"
	"github.com/dmaltsev/takeout-sync/internal/store"
	"github.com/dmaltsev/takeout-sync/internal/youtube"
)

// Version is stamped at build time.
var Version = "dev"

// app holds what every command needs once the root command has loaded
// configuration.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// Execute runs the command tree under the given context. The context
// carries signal cancellation from main.
func Execute(ctx context.Context) error {
	a := &app{}

	root := &cobra.Command{
		Use:           "takeout-sync",
		Short:         "Ingest Google Takeout watch history and keep it synced with the YouTube API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			a.cfg = cfg
			a.logger = logging.NewLogger(cfg.IsProduction(), cfg.LogLevel)

			return nil
		},
	}

	root.AddCommand(newIngestCmd(a))
	root.AddCommand(newSyncCmd(a))
	root.AddCommand(newStatusCmd(a))
	root.AddCommand(newWatchCmd(a))

	return root.ExecuteContext(ctx)
}

// openPipeline opens the project's store and state and builds a
// pipeline around them. The returned closer releases both. A remote
// source is attached only when withRemote is set, since ingest-only
// commands run without an API key.
func (a *app) openPipeline(ctx context.Context, withRemote bool, opts ...pipeline.Option) (*pipeline.Pipeline, func(), error) {
	st, err := store.Open(a.cfg.DBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	cursors, err := state.Load(a.cfg.StatePath())
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("loading state: %w", err)
	}

	closer := func() {
		if err := cursors.Close(); err != nil {
			a.logger.Warn("closing state", slog.String("error", err.Error()))
		}
		if err := st.Close(); err != nil {
			a.logger.Warn("closing store", slog.String("error", err.Error()))
		}
	}

	var source reconcile.MetadataSource

	if withRemote {
		if err := a.cfg.RequireAPIKey(); err != nil {
			closer()
			return nil, nil, err
		}

		client, err := youtube.NewClient(ctx, a.cfg.APIKey)
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("creating API client: %w", err)
		}

		source = client
	}

	return pipeline.New(st, cursors, source, a.logger, opts...), closer, nil
}

// withRun executes op with a fresh run whose events drain into the log
// concurrently, and closes the event stream when op returns.
func (a *app) withRun(ctx context.Context, op func(run *pipeline.Run) error) error {
	run := pipeline.NewRun(ctx)

	a.logger.Info("run starting", slog.String("run_id", run.ID))

	g := &errgroup.Group{}
	g.Go(func() error {
		progress.LogSink(a.logger, run.Reporter.Events())
		return nil
	})

	err := op(run)

	run.Reporter.Close()

	if werr := g.Wait(); werr != nil {
		return werr
	}

	return err
}
