package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/saku-tracker/internal/app"
	"github.com/dvloznov/saku-tracker/internal/config"
	"github.com/dvloznov/saku-tracker/internal/events"
	infraBQ "github.com/dvloznov/saku-tracker/internal/infra/bigquery"
	"github.com/dvloznov/saku-tracker/internal/logger"
	"github.com/dvloznov/saku-tracker/internal/scheduler"
)

// The worker runs the monthly classification schedule and, when AMQP and
// BigQuery are configured, mirrors transaction events into BigQuery.
func main() {
	cfg := config.Load()
	log := logger.NewWithConfig(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open application")
	}

	queue, _, handler := a.Queue()
	if err := queue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job queue")
	}

	sched, err := scheduler.New(cfg.AnalysisCron, queue, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	sched.Start()
	log.Info().Time("next_run", sched.Next()).Msg("Worker service started")

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" && cfg.BQProject != "" {
		mirror, err := infraBQ.NewMirror(ctx, cfg.BQProject, cfg.BQDataset, cfg.BQTable, cfg.GCSCredentials, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery mirror")
		}
		defer mirror.Close()
		if err := mirror.EnsureTable(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare BigQuery table")
		}
		g.Go(func() error {
			err := events.Subscribe(gctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
				infraBQ.MirroredEvents, log, infraBQ.EventHandler(mirror, log))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		log.Info().Msg("AMQP_URL or BQ_PROJECT not set - BigQuery mirroring disabled")
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down worker service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return errors.Join(
			sched.Stop(shutdownCtx),
			queue.Stop(shutdownCtx),
			a.Close(shutdownCtx),
		)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Worker service stopped")
}
