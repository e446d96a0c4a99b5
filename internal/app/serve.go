package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions configuration for the Serve method.
type ServeOptions struct {
	// MetricsListen overrides the configured metrics address. Empty keeps the configured one.
	MetricsListen string
	// Watch reloads tunables when the configuration file changes.
	Watch bool
	// Ready, when set, receives the bound metrics address once serving has started.
	Ready func(metricsAddr string)
}

// Serve runs the reconciliation loop, the metrics endpoint and the optional
// configuration watcher until ctx is cancelled. Queued propagation is drained
// before it returns.
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	rt, err := a.session(ctx)
	if err != nil {
		return err
	}

	listen := opts.MetricsListen
	if listen == "" {
		listen = rt.cfg.MetricsListen
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var addr string
	if listen != "" {
		ln, err := net.Listen("tcp", listen)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "listen for metrics"), "addr", listen)
		}
		addr = ln.Addr().String()

		mux := http.NewServeMux()
		mux.Handle("/metrics", rt.metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return zerr.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
		a.logger.Info(fmt.Sprintf("metrics listening on http://%s/metrics", addr))
	}

	if opts.Watch && rt.cfg.Path != "" {
		if err := a.watcher.Start(gctx, rt.cfg.Path); err != nil {
			cancel()
			_ = g.Wait()
			return zerr.Wrap(err, "watch configuration")
		}
		g.Go(func() error {
			for path := range a.watcher.Changes() {
				if err := a.Reload(gctx, path); err != nil {
					// A broken edit keeps the previous settings.
					a.logger.Error(err)
				}
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return a.watcher.Stop()
		})
	}

	rt.job.Start(gctx)
	a.logger.Info(fmt.Sprintf("coordinator running, reconciling every %s", rt.job.Policy().Interval))
	if opts.Ready != nil {
		opts.Ready(addr)
	}

	<-gctx.Done()
	rt.job.Stop()
	err = g.Wait()

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return errors.Join(err, a.Close(sctx))
}
