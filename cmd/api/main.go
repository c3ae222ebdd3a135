package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/saku-tracker/internal/api/handlers"
	"github.com/dvloznov/saku-tracker/internal/app"
	"github.com/dvloznov/saku-tracker/internal/config"
	"github.com/dvloznov/saku-tracker/internal/logger"
	"github.com/dvloznov/saku-tracker/internal/scheduler"
)

func main() {
	cfg := config.Load()

	port := flag.String("port", cfg.Port, "HTTP server port")
	withScheduler := flag.Bool("scheduler", true, "enqueue the monthly classification on ANALYSIS_CRON")
	flag.Parse()
	cfg.Port = *port

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

	queue, jobStore, handler := a.Queue()
	if err := queue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job queue")
	}

	var sched *scheduler.Scheduler
	if *withScheduler {
		sched, err = scheduler.New(cfg.AnalysisCron, queue, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create scheduler")
		}
		sched.Start()
		log.Info().Time("next_run", sched.Next()).Msg("Monthly analysis scheduled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(a.Ledger, queue, jobStore, log),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Chat turns and classification wait on the model.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down API server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if sched != nil {
			if err := sched.Stop(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := queue.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := a.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("API server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("API server stopped")
}
