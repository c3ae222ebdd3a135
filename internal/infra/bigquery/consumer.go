package bigquery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/events"
)

// RowSink is the part of Mirror driven by ledger events.
type RowSink interface {
	Insert(ctx context.Context, txs []domain.Transaction) error
	Delete(ctx context.Context, id string) error
}

// MirroredEvents are the routing keys EventHandler understands.
var MirroredEvents = []string{events.TransactionAdded, events.TransactionDeleted}

// EventHandler keeps sink in step with transaction events. A returned
// error makes the subscriber requeue the event; malformed payloads are
// logged and acknowledged.
func EventHandler(sink RowSink, log zerolog.Logger) func(context.Context, events.Event) error {
	return func(ctx context.Context, e events.Event) error {
		switch e.Type {
		case events.TransactionAdded:
			var t domain.Transaction
			if err := json.Unmarshal(e.Payload, &t); err != nil {
				log.Error().Err(err).Str("event_id", e.ID).Msg("Dropping malformed transaction event")
				return nil
			}
			if err := sink.Insert(ctx, []domain.Transaction{t}); err != nil {
				return fmt.Errorf("mirror insert %s: %w", t.ID, err)
			}
		case events.TransactionDeleted:
			var p struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(e.Payload, &p); err != nil || p.ID == "" {
				log.Error().Err(err).Str("event_id", e.ID).Msg("Dropping malformed delete event")
				return nil
			}
			if err := sink.Delete(ctx, p.ID); err != nil {
				return fmt.Errorf("mirror delete %s: %w", p.ID, err)
			}
		default:
			log.Debug().Str("type", e.Type).Msg("Ignoring event")
		}
		return nil
	}
}

var _ RowSink = (*Mirror)(nil)
