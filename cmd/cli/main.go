package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/saku-tracker/internal/app"
	"github.com/dvloznov/saku-tracker/internal/config"
	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/export"
	infraBQ "github.com/dvloznov/saku-tracker/internal/infra/bigquery"
	"github.com/dvloznov/saku-tracker/internal/ledger"
	"github.com/dvloznov/saku-tracker/internal/logger"
	"github.com/dvloznov/saku-tracker/internal/store"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app.App, args []string) error
}

var commands = []command{
	{"add", "Record a transaction", runAdd},
	{"list", "List transactions", runList},
	{"delete", "Delete a transaction by ID", runDelete},
	{"categories", "List or add categories", runCategories},
	{"summary", "Show the monthly summary and health report", runSummary},
	{"trend", "Show income and expense per month", runTrend},
	{"classify", "Classify a month's expenses into NEED/WANT", runClassify},
	{"reset-analysis", "Forget the cached analysis of a month", runResetAnalysis},
	{"purchase", "Ask whether a single purchase is worth it", runPurchase},
	{"advise", "Get financial advice for a month", runAdvise},
	{"parse", "Parse a free-text transaction", runParse},
	{"chat", "Start an interactive chat session", runChat},
	{"debts", "List debts", runDebts},
	{"debt-add", "Record a debt", runDebtAdd},
	{"debt-paid", "Mark a debt as paid", runDebtPaid},
	{"debt-delete", "Delete a debt", runDebtDelete},
	{"export-xlsx", "Export transactions to an Excel report", runExportXLSX},
	{"export-pdf", "Export transactions to a PDF report", runExportPDF},
	{"export-bq", "Mirror transactions into BigQuery", runExportBQ},
	{"backup", "Write the database image to a file", runBackup},
	{"flush", "Retry writing a pending database image", runFlush},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage()
		return
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.NewWithConfig(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open application")
	}

	runErr := cmd.run(ctx, a, os.Args[2:])
	if err := a.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to close application")
	}
	if runErr != nil {
		fail(log, runErr)
	}
}

func fail(log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	default:
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func printUsage() {
	fmt.Println("SakuPintar CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	for _, c := range commands {
		fmt.Printf("  %-15s %s\n", c.name, c.usage)
	}
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", ledger.ErrInvalidInput, s)
	}
	return d, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ledger.ErrInvalidInput, s)
	}
	return t, nil
}

func runAdd(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	typ := fs.String("type", "EXPENSE", "INCOME or EXPENSE")
	category := fs.String("category", "", "Category name")
	amount := fs.String("amount", "", "Amount in rupiah")
	desc := fs.String("desc", "", "Description")
	date := fs.String("date", "", "Date (YYYY-MM-DD), today when empty")
	fs.Parse(args)

	tt, err := domain.ParseTransactionType(*typ)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
	}
	amt, err := parseAmount(*amount)
	if err != nil {
		return err
	}
	d, err := parseDate(*date)
	if err != nil {
		return err
	}

	saved, err := a.Ledger.AddTransaction(ctx, domain.Transaction{
		Type: tt, Category: *category, Amount: amt, Description: *desc, Date: d,
	})
	if errors.Is(err, store.ErrPersist) {
		fmt.Fprintln(os.Stderr, "Warning: saved in memory only; run 'cli flush' to retry")
		err = nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Added %s %s %s (%s)\n", saved.Type, saved.Category, saved.Amount.String(), saved.ID)
	return nil
}

func runList(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	month := fs.String("month", "", "Month (YYYY-MM); all when empty")
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Parse(args)

	txs, err := a.Ledger.GetTransactions(ctx)
	if *month != "" {
		txs, err = a.Ledger.TransactionsForMonth(ctx, *month)
	}
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(txs)
	}
	for _, t := range txs {
		fmt.Printf("%s  %s  %-8s %-25s %12s  %s\n",
			t.ID, t.Date.Format("2006-01-02"), t.Type, t.Category, t.Amount.StringFixed(0), t.Description)
	}
	fmt.Printf("\n%d transaction(s)\n", len(txs))
	return nil
}

func runDelete(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "Transaction ID")
	fs.Parse(args)

	if err := a.Ledger.DeleteTransaction(ctx, *id); err != nil {
		return err
	}
	fmt.Println("Deleted", *id)
	return nil
}

func runCategories(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("categories", flag.ExitOnError)
	add := fs.String("add", "", "Name of a category to add")
	typ := fs.String("type", "EXPENSE", "Type of the added category")
	fs.Parse(args)

	if *add != "" {
		tt, err := domain.ParseTransactionType(*typ)
		if err != nil {
			return fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
		}
		if err := a.Ledger.AddCategory(ctx, tt, *add); err != nil {
			return err
		}
	}
	cats, err := a.Ledger.GetCategories(ctx)
	if err != nil {
		return err
	}
	return printJSON(cats)
}

func runSummary(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	month := fs.String("month", domain.MonthKey(time.Now()), "Month (YYYY-MM); empty for all time")
	fs.Parse(args)

	s, err := a.Ledger.MonthlySummary(ctx, *month)
	if err != nil {
		return err
	}
	return printJSON(s)
}

func runTrend(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("trend", flag.ExitOnError)
	months := fs.Int("months", domain.DefaultTrendMonths, "Number of months to show")
	fs.Parse(args)

	points, err := a.Ledger.Trend(ctx, *months)
	if err != nil {
		return err
	}
	return printJSON(points)
}

func runClassify(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	month := fs.String("month", domain.MonthKey(time.Now()), "Month (YYYY-MM)")
	force := fs.Bool("force", false, "Ignore the cached analysis")
	fs.Parse(args)

	res, err := a.Ledger.ClassifyMonth(ctx, *month, *force)
	if err != nil {
		return err
	}
	if res.Fallback {
		fmt.Fprintln(os.Stderr, "Warning: the model was unavailable; every expense is marked WANT and nothing was cached")
	}
	return printJSON(res)
}

func runResetAnalysis(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("reset-analysis", flag.ExitOnError)
	month := fs.String("month", "", "Month (YYYY-MM)")
	fs.Parse(args)

	if err := a.Ledger.ResetMonthlyAnalysis(ctx, *month); err != nil {
		return err
	}
	fmt.Println("Analysis reset for", *month)
	return nil
}

func runPurchase(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("purchase", flag.ExitOnError)
	item := fs.String("item", "", "What you want to buy")
	price := fs.String("price", "", "Price in rupiah")
	reason := fs.String("reason", "", "Why you want it")
	fs.Parse(args)

	p, err := parseAmount(*price)
	if err != nil {
		return err
	}
	res, err := a.Ledger.AnalyzeSinglePurchase(ctx, *item, p, *reason)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runAdvise(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("advise", flag.ExitOnError)
	month := fs.String("month", domain.MonthKey(time.Now()), "Month (YYYY-MM); empty for all time")
	fs.Parse(args)

	advice, err := a.Ledger.AdviseFinances(ctx, *month)
	if err != nil {
		return err
	}
	fmt.Println(advice)
	return nil
}

func runParse(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	save := fs.Bool("save", false, "Record the parsed transaction")
	fs.Parse(args)

	text := strings.Join(fs.Args(), " ")
	parsed, ok, err := a.Ledger.ParseTransaction(ctx, text)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: could not parse %q", ledger.ErrInvalidInput, text)
	}
	fmt.Println(parsed.String())
	if !*save {
		return nil
	}
	saved, err := a.Ledger.AddTransaction(ctx, domain.Transaction{
		Type:        parsed.Type,
		Category:    parsed.Category,
		Amount:      parsed.Amount,
		Description: parsed.Description,
		Date:        parsed.Date,
	})
	if err != nil {
		return err
	}
	fmt.Println("Saved as", saved.ID)
	return nil
}

func runChat(ctx context.Context, a *app.App, _ []string) error {
	sess, err := a.Ledger.StartChat(ctx)
	if err != nil {
		return err
	}
	defer a.Ledger.EndChat(sess.ID)

	fmt.Println("Chat started. Type /exit to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/exit" || line == "/quit" {
			return nil
		}
		reply, err := a.Ledger.SendChatTurn(ctx, sess.ID, line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			continue
		}
		fmt.Println(reply.Text)
	}
}

func runDebts(ctx context.Context, a *app.App, _ []string) error {
	debts, err := a.Ledger.ListDebts(ctx)
	if err != nil {
		return err
	}
	return printJSON(debts)
}

func runDebtAdd(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("debt-add", flag.ExitOnError)
	person := fs.String("person", "", "Who the debt is with")
	typ := fs.String("type", "PAYABLE", "PAYABLE (you owe) or RECEIVABLE (you are owed)")
	amount := fs.String("amount", "", "Amount in rupiah")
	desc := fs.String("desc", "", "Description")
	date := fs.String("date", "", "Date (YYYY-MM-DD), today when empty")
	due := fs.String("due", "", "Due date (YYYY-MM-DD)")
	fs.Parse(args)

	dt, err := domain.ParseDebtType(*typ)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
	}
	amt, err := parseAmount(*amount)
	if err != nil {
		return err
	}
	d := domain.DebtRecord{Person: *person, Type: dt, Amount: amt, Description: *desc}
	if d.Date, err = parseDate(*date); err != nil {
		return err
	}
	if *due != "" {
		dueAt, err := parseDate(*due)
		if err != nil {
			return err
		}
		d.DueDate = &dueAt
	}

	saved, err := a.Ledger.AddDebt(ctx, d)
	if err != nil {
		return err
	}
	return printJSON(saved)
}

func runDebtPaid(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("debt-paid", flag.ExitOnError)
	id := fs.String("id", "", "Debt ID")
	companion := fs.Bool("companion", true, "Also record the matching income or expense")
	fs.Parse(args)

	res, err := a.Ledger.MarkDebtPaid(ctx, *id, *companion)
	if errors.Is(err, ledger.ErrCompanionFailed) {
		fmt.Fprintln(os.Stderr, "Warning: debt marked paid but the companion transaction failed:", err)
		return printJSON(res)
	}
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runDebtDelete(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("debt-delete", flag.ExitOnError)
	id := fs.String("id", "", "Debt ID")
	fs.Parse(args)

	if err := a.Ledger.DeleteDebt(ctx, *id); err != nil {
		return err
	}
	fmt.Println("Deleted", *id)
	return nil
}

func runExportXLSX(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("export-xlsx", flag.ExitOnError)
	month := fs.String("month", "", "Month (YYYY-MM); all when empty")
	out := fs.String("out", "laporan.xlsx", "Output file")
	fs.Parse(args)

	return writeReport(ctx, a, *month, *out, func(w io.Writer, txs []domain.Transaction) error {
		return export.WriteXLSX(w, txs)
	})
}

func runExportPDF(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("export-pdf", flag.ExitOnError)
	month := fs.String("month", "", "Month (YYYY-MM); all when empty")
	out := fs.String("out", "laporan.pdf", "Output file")
	fs.Parse(args)

	period := *month
	if period == "" {
		period = "Semua"
	}
	return writeReport(ctx, a, *month, *out, func(w io.Writer, txs []domain.Transaction) error {
		return export.WritePDF(w, period, txs)
	})
}

// writeReport renders the transactions of month, or all of them, into the
// file at out.
func writeReport(ctx context.Context, a *app.App, month, out string, render func(io.Writer, []domain.Transaction) error) error {
	txs, err := a.Ledger.GetTransactions(ctx)
	if month != "" {
		txs, err = a.Ledger.TransactionsForMonth(ctx, month)
	}
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := render(f, txs); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("Exported %d transaction(s) to %s\n", len(txs), out)
	return nil
}

func runExportBQ(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("export-bq", flag.ExitOnError)
	month := fs.String("month", "", "Month (YYYY-MM) to replace; inserts everything when empty")
	totals := fs.Bool("totals", false, "Print the mirrored totals of -month afterwards")
	fs.Parse(args)

	cfg := a.Config
	if cfg.BQProject == "" {
		return fmt.Errorf("%w: BQ_PROJECT is required", ledger.ErrInvalidInput)
	}
	mirror, err := infraBQ.NewMirror(ctx, cfg.BQProject, cfg.BQDataset, cfg.BQTable, cfg.GCSCredentials, a.Log)
	if err != nil {
		return err
	}
	defer mirror.Close()
	if err := mirror.EnsureTable(ctx); err != nil {
		return err
	}

	if *month == "" {
		txs, err := a.Ledger.GetTransactions(ctx)
		if err != nil {
			return err
		}
		if err := mirror.Insert(ctx, txs); err != nil {
			return err
		}
		fmt.Printf("Mirrored %d transaction(s)\n", len(txs))
		return nil
	}

	txs, err := a.Ledger.TransactionsForMonth(ctx, *month)
	if err != nil {
		return err
	}
	if err := mirror.ReplaceMonth(ctx, *month, txs); err != nil {
		return err
	}
	fmt.Printf("Replaced %s with %d transaction(s)\n", *month, len(txs))

	if *totals {
		rows, err := mirror.MonthTotals(ctx, *month)
		if err != nil {
			return err
		}
		return printJSON(rows)
	}
	return nil
}

func runBackup(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	out := fs.String("out", "saku-backup.db", "Output file")
	fs.Parse(args)

	image, err := a.Engine.Image(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, image, 0o600); err != nil {
		return err
	}
	fmt.Printf("Wrote %d bytes to %s\n", len(image), *out)
	return nil
}

func runFlush(ctx context.Context, a *app.App, _ []string) error {
	if !a.Engine.Dirty() {
		fmt.Println("Nothing to flush")
		return nil
	}
	if err := a.Engine.Flush(ctx); err != nil {
		return err
	}
	fmt.Println("Flushed")
	return nil
}
