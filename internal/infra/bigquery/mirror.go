// Package bigquery mirrors ledger transactions into a BigQuery table for
// ad-hoc analysis. The local store stays the source of truth.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

// TransactionRow is one mirrored transaction.
type TransactionRow struct {
	TransactionID   string              `bigquery:"transaction_id"`
	TransactionDate civil.Date          `bigquery:"transaction_date"`
	Month           string              `bigquery:"month"`
	Amount          *big.Rat            `bigquery:"amount"`
	Type            string              `bigquery:"type"`
	Category        string              `bigquery:"category"`
	Description     bigquery.NullString `bigquery:"description"`
	Bucket          string              `bigquery:"bucket"`
	ExportedTS      time.Time           `bigquery:"exported_ts"`
}

// ToRow converts t. Amounts keep full decimal precision as NUMERIC.
func ToRow(t domain.Transaction, exportedAt time.Time) *TransactionRow {
	amount, _ := new(big.Rat).SetString(t.Amount.String())
	row := &TransactionRow{
		TransactionID:   t.ID,
		TransactionDate: civil.DateOf(t.Date.UTC()),
		Month:           t.Month(),
		Amount:          amount,
		Type:            string(t.Type),
		Category:        t.Category,
		ExportedTS:      exportedAt.UTC(),
	}
	if t.Description != "" {
		row.Description = bigquery.NullString{StringVal: t.Description, Valid: true}
	}
	if t.Type == domain.Expense {
		row.Bucket = string(domain.BucketFor(t.Category))
	}
	return row
}

// MonthTotal is one row of MonthTotals.
type MonthTotal struct {
	Type   string   `bigquery:"type"`
	Amount *big.Rat `bigquery:"amount"`
	Count  int64    `bigquery:"count"`
}

type Mirror struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
	log     zerolog.Logger
	now     func() time.Time
}

// NewMirror connects to BigQuery. credentialsFile may be empty to use
// application default credentials.
func NewMirror(ctx context.Context, project, dataset, table, credentialsFile string, log zerolog.Logger) (*Mirror, error) {
	if project == "" {
		return nil, errors.New("NewMirror: project is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewMirror: creating client: %w", err)
	}
	return &Mirror{
		client:  client,
		project: project,
		dataset: dataset,
		table:   table,
		log:     log.With().Str("component", "bigquery_mirror").Logger(),
		now:     time.Now,
	}, nil
}

func (m *Mirror) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

func (m *Mirror) fqTable() string {
	return "`" + m.project + "." + m.dataset + "." + m.table + "`"
}

// EnsureTable creates the table, partitioned by transaction date, when it
// does not exist yet.
func (m *Mirror) EnsureTable(ctx context.Context) error {
	t := m.client.DatasetInProject(m.project, m.dataset).Table(m.table)
	_, err := t.Metadata(ctx)
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusNotFound {
		return fmt.Errorf("EnsureTable: reading metadata: %w", err)
	}

	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: inferring schema: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema:           schema,
		TimePartitioning: &bigquery.TimePartitioning{Field: "transaction_date", Type: bigquery.MonthPartitioningType},
	}
	if err := t.Create(ctx, meta); err != nil {
		return fmt.Errorf("EnsureTable: creating table: %w", err)
	}
	m.log.Info().Str("table", m.fqTable()).Msg("created mirror table")
	return nil
}

// Insert streams txs. The transaction id is the insert id, so a retried
// batch is deduplicated on a best-effort basis.
func (m *Mirror) Insert(ctx context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return fmt.Errorf("Insert: inferring schema: %w", err)
	}
	now := m.now()
	savers := make([]*bigquery.StructSaver, 0, len(txs))
	for _, t := range txs {
		savers = append(savers, &bigquery.StructSaver{Struct: ToRow(t, now), Schema: schema, InsertID: t.ID})
	}

	inserter := m.client.DatasetInProject(m.project, m.dataset).Table(m.table).Inserter()
	if err := inserter.Put(ctx, savers); err != nil {
		return fmt.Errorf("Insert: inserting rows: %w", err)
	}
	m.log.Debug().Int("rows", len(txs)).Msg("mirrored transactions")
	return nil
}

func (m *Mirror) runDML(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	q := m.client.Query(sql)
	q.Parameters = params
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

// Delete removes a mirrored transaction.
func (m *Mirror) Delete(ctx context.Context, id string) error {
	err := m.runDML(ctx, `DELETE FROM `+m.fqTable()+` WHERE transaction_id = @id`,
		[]bigquery.QueryParameter{{Name: "id", Value: id}})
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

// ReplaceMonth deletes the mirrored rows of month and inserts txs, which
// must all belong to it.
func (m *Mirror) ReplaceMonth(ctx context.Context, month string, txs []domain.Transaction) error {
	err := m.runDML(ctx, `DELETE FROM `+m.fqTable()+` WHERE month = @month`,
		[]bigquery.QueryParameter{{Name: "month", Value: month}})
	if err != nil {
		return fmt.Errorf("ReplaceMonth: %w", err)
	}
	return m.Insert(ctx, txs)
}

// MonthTotals reads back per-type totals for month.
func (m *Mirror) MonthTotals(ctx context.Context, month string) ([]MonthTotal, error) {
	q := m.client.Query(`
		SELECT type, SUM(amount) AS amount, COUNT(*) AS count
		FROM ` + m.fqTable() + `
		WHERE month = @month
		GROUP BY type
		ORDER BY type
	`)
	q.Parameters = []bigquery.QueryParameter{{Name: "month", Value: month}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("MonthTotals: query read: %w", err)
	}
	var out []MonthTotal
	for {
		var r MonthTotal
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("MonthTotals: iter next: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}
