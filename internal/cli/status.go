package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmaltsev/takeout-sync/internal/state"
	"github.com/dmaltsev/takeout-sync/internal/store"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print database counts and the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(a.cfg.DBPath())
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			cursors, err := state.Load(a.cfg.StatePath())
			if err != nil {
				return fmt.Errorf("loading state: %w", err)
			}
			defer cursors.Close()

			sum, err := st.Summary(cmd.Context())
			if err != nil {
				return fmt.Errorf("summarising store: %w", err)
			}

			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Videos:            %d\n", sum.Videos)
			fmt.Fprintf(out, "Channels:          %d\n", sum.Channels)
			fmt.Fprintf(out, "Watch events:      %d\n", sum.WatchEvents)
			fmt.Fprintf(out, "Unidentified:      %d\n", sum.UnknownTimestamps)

			for _, status := range []string{store.StatusActive, store.StatusInactive, store.StatusUnknown} {
				if n := sum.ByStatus[status]; n > 0 {
					fmt.Fprintf(out, "  %-16s %d\n", status+":", n)
				}
			}

			if sum.Tagged > 0 || sum.Categories > 0 {
				fmt.Fprintf(out, "Tagged videos:     %d\n", sum.Tagged)
				fmt.Fprintf(out, "Categories seen:   %d\n", sum.Categories)
			}

			tracked, err := cursors.AllCursors()
			if err != nil {
				return fmt.Errorf("reading cursors: %w", err)
			}

			fmt.Fprintf(out, "Tracked archives:  %d\n", len(tracked))

			last, err := cursors.LastRun()
			if err != nil {
				return fmt.Errorf("reading run history: %w", err)
			}
			if last != nil {
				fmt.Fprintf(out, "Last run:          %s %s at %s",
					last.Kind, last.ID, last.StartedAt.Format(time.RFC3339))

				if last.Cancelled {
					fmt.Fprint(out, " (cancelled)")
				}

				fmt.Fprintln(out)
			}

			return nil
		},
	}
}
