package commands

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.trai.ch/concord/internal/adapters/tui"
	"go.trai.ch/concord/internal/app"
)

func (c *CLI) newTopCmd() *cobra.Command {
	var (
		opts     app.ServeOptions
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Serve and show a live dashboard of propagation and discrepancies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			serveErr := make(chan error, 1)
			go func() {
				serveErr <- c.app.Serve(ctx, opts)
			}()

			model := tui.NewModel(func() (tui.Snapshot, error) {
				return c.snapshot(ctx)
			}, interval)
			r := tui.NewRenderer(model,
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
				tea.WithAltScreen(),
			)
			if err := r.Start(ctx); err != nil {
				cancel()
				return errors.Join(err, <-serveErr)
			}

			uiErr := make(chan error, 1)
			go func() {
				uiErr <- r.Wait()
			}()

			select {
			case err := <-serveErr:
				_ = r.Stop()
				return errors.Join(err, <-uiErr)
			case err := <-uiErr:
				cancel()
				return errors.Join(err, <-serveErr)
			}
		},
	}

	cmd.Flags().StringVar(&opts.MetricsListen, "metrics-listen", "", "Address for the metrics endpoint, overriding the config")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Reload settings when the config file changes")
	cmd.Flags().DurationVar(&interval, "interval", tui.DefaultInterval, "Refresh interval")

	return cmd
}

func (c *CLI) snapshot(ctx context.Context) (tui.Snapshot, error) {
	s, err := c.app.Stats(ctx)
	if err != nil {
		return tui.Snapshot{}, err
	}
	ds, err := c.app.Discrepancies(ctx)
	if err != nil {
		return tui.Snapshot{}, err
	}
	return tui.Snapshot{
		Applied:         s.Propagation.Applied,
		Coalesced:       s.Propagation.Coalesced,
		Stale:           s.Propagation.Stale,
		Retried:         s.Propagation.Retried,
		Failed:          s.Propagation.Failed,
		Shed:            s.Propagation.Shed,
		InFlight:        s.Propagation.InFlight,
		Queued:          s.Propagation.Queued,
		CacheHits:       s.CacheHits,
		CacheMisses:     s.CacheMisses,
		CacheBypasses:   s.CacheBypasses,
		ReconcilePasses: s.ReconcilePasses,
		DeadLetters:     s.DeadLetters,
		Discrepancies:   ds,
		At:              time.Now(),
	}, nil
}
