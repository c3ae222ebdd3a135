// Package app wires configuration into the running pieces shared by the
// binaries: the store engine, the model client and the ledger service.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/saku-tracker/internal/assistant"
	"github.com/dvloznov/saku-tracker/internal/blob"
	"github.com/dvloznov/saku-tracker/internal/config"
	"github.com/dvloznov/saku-tracker/internal/events"
	"github.com/dvloznov/saku-tracker/internal/jobs"
	"github.com/dvloznov/saku-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/saku-tracker/internal/ledger"
	"github.com/dvloznov/saku-tracker/internal/store"
)

func init() {
	// Amounts travel as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// App holds the long-lived components of a process.
type App struct {
	Config  *config.Config
	Blob    blob.Store
	Engine  *store.Engine
	Ledger  *ledger.Service
	Events  events.Publisher
	Log     zerolog.Logger
	closers []func() error
}

// Open builds the engine over the configured blob backend, loads the
// durable image and constructs the ledger service. Without a Gemini key the
// assistant runs with its fallbacks.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	bs, err := blob.Open(ctx, cfg.Blob(), log)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	a.Blob = bs
	a.closers = append(a.closers, bs.Close)

	a.Engine = store.NewEngine(store.NewBlobPersister(bs, cfg.StoreKey), log)
	if err := a.Engine.Init(ctx); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init store: %w", err)
	}
	a.closers = append(a.closers, a.Engine.Close)

	opts := ledger.Options{Logger: log}
	gem, err := assistant.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiChatModel, log)
	switch {
	case errors.Is(err, assistant.ErrNoAPIKey):
		log.Warn().Msg("GEMINI_API_KEY not set - assistant runs on fallbacks")
	case err != nil:
		a.Close(ctx)
		return nil, err
	default:
		opts.Chat = gem
		opts.Generator = gem
		if cfg.ModelCategoryMatch {
			opts.Matcher = assistant.NewModelMatcher(gem, log)
		}
	}

	a.Events = events.Nop{}
	if cfg.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.Events = pub
		a.closers = append(a.closers, pub.Close)
	}
	opts.Events = a.Events

	a.Ledger = ledger.New(a.Engine, opts)
	return a, nil
}

// Queue builds an in-memory job queue whose workers classify months
// through the ledger.
func (a *App) Queue() (*inmemory.Queue, jobs.JobStore, jobs.JobHandler) {
	js := inmemory.NewStore()
	q := inmemory.NewQueue(inmemory.Config{
		Workers:    a.Config.JobWorkers,
		MaxRetries: a.Config.JobRetries,
		Backoff:    a.Config.JobBackoff,
	}, js, a.Log)
	return q, js, jobs.NewClassifyHandler(a.Ledger, a.Log)
}

// Close flushes a dirty store and releases everything Open acquired, in
// reverse order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Engine != nil && a.Engine.Dirty() {
		if err := a.Engine.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush store: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
