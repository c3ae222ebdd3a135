package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/saku-tracker/internal/app"
	"github.com/dvloznov/saku-tracker/internal/config"
	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/logger"
	"github.com/dvloznov/saku-tracker/internal/notionsync"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithConfig(cfg.LogLevel, cfg.LogFormat)

	month := flag.String("month", "", "Only sync transactions of this month (YYYY-MM); all months when empty")
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", cfg.NotionDatabaseID, "Notion transactions database ID (or set NOTION_DATABASE_ID)")
	debtsDBID := flag.String("notion-debts-db-id", cfg.NotionDebtsDatabaseID, "Notion debts database ID; debts are skipped when empty")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}
	if *month != "" {
		if _, err := domain.ParseMonthKey(*month); err != nil {
			log.Fatal().Err(err).Str("month", *month).Msg("Error: invalid month, expected YYYY-MM")
		}
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open application")
	}
	defer a.Close(ctx)

	txs, err := a.Ledger.GetTransactions(ctx)
	if *month != "" {
		txs, err = a.Ledger.TransactionsForMonth(ctx, *month)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load transactions")
	}

	notion := notionsync.NewNotionClient(*notionToken)

	res, err := notionsync.SyncTransactions(ctx, notion, *notionDBID, txs, *month, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Transaction sync failed")
	}
	fmt.Printf("Transactions: %d created, %d deleted, %d unchanged, %d failed\n",
		res.Created, res.Deleted, res.Skipped, res.Failed)

	if *debtsDBID != "" {
		debts, err := a.Ledger.ListDebts(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load debts")
		}
		res, err := notionsync.SyncDebts(ctx, notion, *debtsDBID, debts, *dryRun)
		if err != nil {
			log.Fatal().Err(err).Msg("Debt sync failed")
		}
		fmt.Printf("Debts: %d created, %d updated, %d deleted, %d unchanged, %d failed\n",
			res.Created, res.Updated, res.Deleted, res.Skipped, res.Failed)
	}

	if *dryRun {
		fmt.Println("Dry run: no changes were made.")
	}
}
