package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/concord/internal/app"
)

func (c *CLI) newServeCmd() *cobra.Command {
	var opts app.ServeOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run propagation, reconciliation and the metrics endpoint until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := c.printer(cmd)
			opts.Ready = func(addr string) {
				if addr != "" {
					p.Success("serving metrics on http://%s/metrics", addr)
				}
			}
			return c.app.Serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsListen, "metrics-listen", "", "Address for the metrics endpoint, overriding the config")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Reload settings when the config file changes")

	return cmd
}
