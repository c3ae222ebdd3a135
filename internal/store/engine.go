// Package store holds all ledger data in a private in-memory SQLite
// database and writes the whole serialized database to a Persister after
// every mutation.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

var (
	// ErrStorageInit means the engine or its durable layer could not be
	// reached. Callers should treat it as fatal.
	ErrStorageInit = errors.New("store: initialization failed")
	// ErrPersist means a mutation was applied in memory but the durable
	// image could not be written. The engine retries on Flush or on the
	// next mutation.
	ErrPersist = errors.New("store: persisting image failed")
	// ErrNotFound is returned by lookups that require an existing record.
	ErrNotFound = errors.New("store: record not found")
)

// timeLayout is fixed width so lexical order equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Engine is the single owner of the relational store. All methods are safe
// for concurrent use; operations are serialized by an internal mutex.
type Engine struct {
	mu          sync.Mutex
	db          *sql.DB
	persister   Persister
	log         zerolog.Logger
	initialized bool
	dirty       bool
	version     uint
}

func NewEngine(p Persister, log zerolog.Logger) *Engine {
	return &Engine{persister: p, log: log.With().Str("component", "store").Logger()}
}

// Init loads the durable image, or creates an empty schema with default
// categories when none exists. Calling it again is a no-op.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initLocked(ctx)
}

func (e *Engine) initLocked(ctx context.Context) error {
	if e.initialized {
		return nil
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return fmt.Errorf("%w: open sqlite: %w", ErrStorageInit, err)
	}
	// Every connection to :memory: is a separate database, so exactly one
	// connection must live for the lifetime of the engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	image, err := e.persister.Load(ctx)
	if err != nil {
		db.Close()
		return fmt.Errorf("%w: load image: %w", ErrStorageInit, err)
	}
	fresh := len(image) == 0

	if !fresh {
		if err := restore(ctx, db, image); err != nil {
			db.Close()
			return fmt.Errorf("%w: restore image: %w", ErrStorageInit, err)
		}
	}

	from, to, err := runMigrations(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("%w: %w", ErrStorageInit, err)
	}

	e.db = db
	e.initialized = true
	e.version = to

	if fresh {
		if err := e.seedDefaults(ctx); err != nil {
			e.closeLocked()
			return fmt.Errorf("%w: seed categories: %w", ErrStorageInit, err)
		}
		if err := e.persistLocked(ctx); err != nil {
			e.closeLocked()
			return fmt.Errorf("%w: %w", ErrStorageInit, err)
		}
	}

	// An upgraded image is written back so other readers see the new
	// schema. Failing that leaves the engine dirty, not broken.
	if !fresh && from != to {
		e.log.Info().Uint("from", from).Uint("to", to).Msg("schema upgraded")
		_ = e.persistLocked(ctx)
	}

	e.log.Info().Bool("fresh", fresh).Uint("schema_version", to).Int("image_bytes", len(image)).Msg("store initialized")
	return nil
}

func (e *Engine) seedDefaults(ctx context.Context) error {
	defaults := domain.DefaultCategories()
	for _, typ := range []domain.TransactionType{domain.Income, domain.Expense} {
		for _, name := range defaults.For(typ) {
			if _, err := e.db.ExecContext(ctx,
				`INSERT OR IGNORE INTO categories (name, type) VALUES (?, ?)`, name, string(typ)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close releases the database. A later call to Init reloads the image.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeLocked()
}

func (e *Engine) closeLocked() error {
	if !e.initialized {
		return nil
	}
	e.initialized = false
	e.dirty = false
	err := e.db.Close()
	e.db = nil
	return err
}

// SchemaVersion returns the migration version of the loaded database.
func (e *Engine) SchemaVersion(ctx context.Context) (uint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.initLocked(ctx); err != nil {
		return 0, err
	}
	return e.version, nil
}

// Dirty reports whether the in-memory state is ahead of the durable image.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Flush rewrites the durable image if a previous persist failed.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized || !e.dirty {
		return nil
	}
	return e.persistLocked(ctx)
}

// Image returns the serialized database as it currently is in memory.
func (e *Engine) Image(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.initLocked(ctx); err != nil {
		return nil, err
	}
	return serialize(ctx, e.db)
}

func (e *Engine) persistLocked(ctx context.Context) error {
	image, err := serialize(ctx, e.db)
	if err == nil {
		err = e.persister.Save(ctx, image)
	}
	if err != nil {
		e.dirty = true
		e.log.Error().Err(err).Msg("persisting image failed; state kept in memory")
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	e.dirty = false
	e.log.Debug().Int("image_bytes", len(image)).Msg("image persisted")
	return nil
}

// mutate runs fn in a transaction and persists the image when fn reports a
// change or an earlier persist is still outstanding.
func (e *Engine) mutate(ctx context.Context, op string, fn func(tx *sql.Tx) (bool, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.initLocked(ctx); err != nil {
		return err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	changed, err := fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	if !changed && !e.dirty {
		return nil
	}
	if err := e.persistLocked(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// read runs fn under the engine lock after lazy initialization.
func (e *Engine) read(ctx context.Context, fn func(db *sql.DB) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.initLocked(ctx); err != nil {
		return err
	}
	return fn(e.db)
}

type serializer interface {
	Serialize() ([]byte, error)
}

func serialize(ctx context.Context, db *sql.DB) ([]byte, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("serialize: acquire conn: %w", err)
	}
	defer conn.Close()

	var image []byte
	err = conn.Raw(func(dc any) error {
		s, ok := dc.(serializer)
		if !ok {
			return fmt.Errorf("driver connection %T cannot serialize", dc)
		}
		var err error
		image, err = s.Serialize()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	return image, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts the engine's own layout and any RFC 3339 timestamp, so
// images written by other tools still load.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if d, derr := time.Parse("2006-01-02", s); derr == nil {
			return d, nil
		}
		return time.Time{}, err
	}
	return t.UTC(), nil
}
