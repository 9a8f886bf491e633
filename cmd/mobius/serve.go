package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/saturn77/mobius-go/pkg/bridge"
	"github.com/saturn77/mobius-go/pkg/dispatch"
	"github.com/saturn77/mobius-go/pkg/metrics"
	"github.com/saturn77/mobius-go/pkg/reactive"
	"github.com/saturn77/mobius-go/pkg/signals"
)

func serveCmd() *cobra.Command {
	var (
		addr         string
		tickInterval time.Duration
		verbose      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo reactive server",
		Long: `Run an HTTP server exposing the reactive runtime.

Endpoints:
  /ws       WebSocket bridge (subscribe to events, send routed events)
  /healthz  liveness probe
  /metrics  Prometheus metrics

A demo ticker drives an observable cell and a derived cell; every
change is published to connected subscribers on the "ticks" channel.
Events sent on the "echo" channel are dispatched through the async
runtime and reflected back to all subscribers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, tickInterval, verbose)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "Address to listen on")
	cmd.Flags().DurationVar(&tickInterval, "tick", time.Second, "Demo ticker interval")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	return cmd
}

func runServe(addr string, tickInterval time.Duration, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	dispatchMetrics := metrics.NewDispatch(metrics.WithRegistry(reg))

	// Demo state: a tick counter and its doubled projection.
	ticks := reactive.NewCell(0)
	doubled := reactive.NewDerived([]reactive.Observable{ticks}, func() int {
		return ticks.Get() * 2
	})
	defer doubled.Close()
	defer ticks.Close()

	rt, handle, notices := dispatch.NewRuntime[bridge.RemoteEvent](
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(dispatchMetrics),
		dispatch.WithTracer("mobius"),
	)

	inbound, inboundSlot := signals.NewPair[bridge.RemoteEvent]()
	bridgeServer := bridge.NewServer(inbound, bridge.Config{
		Logger:  logger,
		Metrics: dispatchMetrics,
	})

	rt.RegisterHandler("echo", func(ctx context.Context, e bridge.RemoteEvent) {
		bridgeServer.Publish(e)
	})

	// Bridge frames flow into the runtime.
	inboundSlot.Start(func(e bridge.RemoteEvent) {
		handle.Send(e)
	})

	// Every cell change is pushed to subscribers.
	tickSub := ticks.OnChange(func() {
		payload, err := json.Marshal(map[string]int{
			"ticks":   ticks.Get(),
			"doubled": doubled.Get(),
		})
		if err != nil {
			return
		}
		bridgeServer.Publish(bridge.RemoteEvent{Channel: "ticks", Payload: payload})
	})
	defer tickSub.Cancel()

	go func() {
		for n := range notices {
			logger.Debug("dispatch lifecycle", "kind", n.Kind.String(), "route", n.Route)
		}
	}()

	go rt.Run(ctx)

	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ticks.Update(func(n int) int { return n + 1 })
			case <-ctx.Done():
				return
			}
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Mount("/", bridgeServer.Routes())
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	bridgeServer.Close()
	handle.Shutdown()
	inboundSlot.Close()
	<-inboundSlot.Done()

	logger.Info("stopped")
	return nil
}
