// Package notionsync mirrors transactions and debts into Notion
// databases. Runs are idempotent: rows are matched on their id property.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/logger"
)

// BatchSize is how many rows are processed between progress log lines.
const BatchSize = 100

// Result counts what a sync did, or would do on a dry run.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// SyncTransactions makes the Notion transactions database match txs.
// When month is set only pages of that month are considered, so stale
// pages of other months are left alone. Transactions are immutable, so
// pages that already exist are skipped. Per-page failures are logged and
// counted; only a failed database query aborts the run.
func SyncTransactions(ctx context.Context, notion NotionService, databaseID string, txs []domain.Transaction, month string, dryRun bool) (Result, error) {
	log := logger.FromContext(ctx).With().Str("database", "transactions").Str("month", month).Bool("dry_run", dryRun).Logger()
	log.Info().Int("transaction_count", len(txs)).Msg("Starting transaction sync to Notion")

	var res Result
	pages, err := queryAllNotionPages(ctx, notion, databaseID)
	if err != nil {
		return res, fmt.Errorf("SyncTransactions: %w", err)
	}

	valid := make(map[string]bool, len(txs))
	for _, t := range txs {
		valid[t.ID] = true
	}

	existing := make(map[string]bool)
	for _, page := range pages {
		if month != "" && plainText(page, PropMonth) != month {
			continue
		}
		id := plainText(page, PropTransactionID)
		if id != "" && valid[id] {
			existing[id] = true
			continue
		}
		archive(ctx, notion, page, id, dryRun, &res)
	}

	for i, t := range txs {
		if i > 0 && i%BatchSize == 0 {
			log.Info().Int("processed", i).Msg("Sync progress")
		}
		if existing[t.ID] {
			res.Skipped++
			continue
		}
		if dryRun {
			log.Info().Str("transaction_id", t.ID).Msg("[DRY RUN] Would create Notion page")
			res.Created++
			continue
		}
		page, err := notion.CreatePage(ctx, databaseID, TransactionToNotionProperties(t))
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", t.ID).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Debug().Str("transaction_id", t.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		res.Created++
	}

	log.Info().
		Int("created", res.Created).
		Int("deleted", res.Deleted).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("Transaction sync completed")
	return res, nil
}

// SyncDebts makes the Notion debts database match debts. Debts change
// status, so existing pages whose status differs are updated.
func SyncDebts(ctx context.Context, notion NotionService, databaseID string, debts []domain.DebtRecord, dryRun bool) (Result, error) {
	log := logger.FromContext(ctx).With().Str("database", "debts").Bool("dry_run", dryRun).Logger()
	log.Info().Int("debt_count", len(debts)).Msg("Starting debt sync to Notion")

	var res Result
	pages, err := queryAllNotionPages(ctx, notion, databaseID)
	if err != nil {
		return res, fmt.Errorf("SyncDebts: %w", err)
	}

	byID := make(map[string]domain.DebtRecord, len(debts))
	for _, d := range debts {
		byID[d.ID] = d
	}

	seen := make(map[string]bool)
	for _, page := range pages {
		id := plainText(page, PropDebtID)
		d, ok := byID[id]
		if id == "" || !ok || seen[id] {
			archive(ctx, notion, page, id, dryRun, &res)
			continue
		}
		seen[id] = true
		if selectName(page, PropStatus) == string(d.Status) {
			res.Skipped++
			continue
		}
		if dryRun {
			log.Info().Str("debt_id", id).Msg("[DRY RUN] Would update Notion page")
			res.Updated++
			continue
		}
		if _, err := notion.UpdatePage(ctx, string(page.ID), DebtToNotionProperties(d)); err != nil {
			log.Warn().Err(err).Str("debt_id", id).Msg("Failed to update Notion page")
			res.Failed++
			continue
		}
		res.Updated++
	}

	for _, d := range debts {
		if seen[d.ID] {
			continue
		}
		if dryRun {
			log.Info().Str("debt_id", d.ID).Msg("[DRY RUN] Would create Notion page")
			res.Created++
			continue
		}
		if _, err := notion.CreatePage(ctx, databaseID, DebtToNotionProperties(d)); err != nil {
			log.Warn().Err(err).Str("debt_id", d.ID).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		res.Created++
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("deleted", res.Deleted).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("Debt sync completed")
	return res, nil
}

func archive(ctx context.Context, notion NotionService, page notionapi.Page, id string, dryRun bool, res *Result) {
	log := logger.FromContext(ctx)
	if dryRun {
		log.Info().Str("id", id).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would delete stale Notion page")
		res.Deleted++
		return
	}
	if err := notion.DeletePage(ctx, string(page.ID)); err != nil {
		log.Warn().Err(err).Str("id", id).Str("page_id", string(page.ID)).Msg("Failed to delete stale Notion page")
		res.Failed++
		return
	}
	res.Deleted++
}

// queryAllNotionPages follows the pagination cursor to the end.
func queryAllNotionPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var (
		all    []notionapi.Page
		cursor notionapi.Cursor
	)
	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: 100}
		if cursor != "" {
			req.StartCursor = cursor
		}
		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		all = append(all, resp.Results...)
		if !resp.HasMore {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}
