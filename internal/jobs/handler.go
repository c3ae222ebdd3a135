package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/saku-tracker/internal/ledger"
)

// Classifier is the part of the ledger the classify handler needs.
type Classifier interface {
	ClassifyMonth(ctx context.Context, monthKey string, force bool) (ledger.ClassifyResult, error)
}

// ErrModelFallback marks an attempt where the model was unreachable and only
// the placeholder analysis came back. It is retried like any other failure.
var ErrModelFallback = errors.New("classification fell back to placeholder")

// NewClassifyHandler returns the handler that runs ClassifyMonthJob.
func NewClassifyHandler(c Classifier, log zerolog.Logger) JobHandler {
	return func(ctx context.Context, job Job) error {
		j, ok := job.(*ClassifyMonthJob)
		if !ok {
			return fmt.Errorf("unsupported job type %q", job.GetType())
		}
		l := log.With().Str("job_id", j.JobID).Str("month", j.Month).Logger()

		res, err := c.ClassifyMonth(ctx, j.Month, j.Force)
		if err != nil {
			l.Error().Err(err).Msg("classify month failed")
			return err
		}
		if res.Fallback {
			l.Warn().Int("retry_count", j.RetryCount).Msg("model unavailable")
			return ErrModelFallback
		}
		l.Info().Bool("cached", res.Cached).
			Int("needs_pct", res.Analysis.NeedsPercentage).
			Int("wants_pct", res.Analysis.WantsPercentage).
			Msg("month classified")
		return nil
	}
}
