// Command subscriber consumes contract and provider events from Pub/Sub and
// keeps the contract registry in sync.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/zanwyyy/contractsync/app"
	"github.com/zanwyyy/contractsync/config"
	"github.com/zanwyyy/contractsync/logger"
	"github.com/zanwyyy/contractsync/metrics"
	pubsub2 "github.com/zanwyyy/contractsync/pubsub"
	"github.com/zanwyyy/contractsync/registry"
	"github.com/zanwyyy/contractsync/subscriber"
)

func main() {
	cliApp := &cli.App{
		Name:  "subscriber",
		Usage: "refresh tracked contracts on contract.* and provider.changed events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				Value:   "contractsync.yaml",
				EnvVars: []string{"CONTRACTSYNC_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "subscription",
				Usage: "override pubsub.subscription",
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "subscriber:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	ctx := c.Context

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if s := c.String("subscription"); s != "" {
		cfg.PubSub.Subscription = s
	}
	log := logger.New(cfg.Service, logger.WithLevel(cfg.LogLevel), logger.WithPretty(cfg.PrettyLogs))

	metrics.Register(prometheus.DefaultRegisterer)
	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, log)
	}

	ps, err := pubsub2.NewPubSubClient(ctx, cfg.PubSub.ProjectID, log)
	if err != nil {
		return err
	}
	defer ps.Close()

	var listeners []registry.Listener
	if cfg.PubSub.PublishSnapshots {
		// keeps publishing the final snapshot after ctx is cancelled
		snapshots := ps.NewSnapshotPublisher(context.WithoutCancel(ctx), cfg.PubSub.RegistryTopic)
		defer snapshots.Close()
		listeners = append(listeners, snapshots.Listener)
	}

	rt, err := app.Bootstrap(cfg, log, listeners...)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.App.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("initial refresh failed")
	}

	h := subscriber.NewHandler(rt.App, cfg.Provider, log, subscriber.WithSimulated(rt.SimProvider))
	defer h.Close()

	log.Info().Str("subscription", cfg.PubSub.Subscription).Msg("listening")
	err = subscriber.Receive(ctx, ps.Client.Subscription(cfg.PubSub.Subscription), h)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}

func serveMetrics(ctx context.Context, addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server")
	}
}
