package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/bookkeeper/internal/bootstrap"
	"github.com/dvloznov/bookkeeper/internal/config"
	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/export"
	exportbq "github.com/dvloznov/bookkeeper/internal/export/bigquery"
	"github.com/dvloznov/bookkeeper/internal/export/notion"
	"github.com/dvloznov/bookkeeper/internal/logger"
	"github.com/dvloznov/bookkeeper/internal/pipeline"
	"github.com/dvloznov/bookkeeper/internal/reconcile"
	"github.com/dvloznov/bookkeeper/internal/store/gcs"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ingest":
		runIngest(log)
	case "upload":
		runUpload(log)
	case "bulk-post":
		runBulkPost(log)
	case "export":
		runExport(log)
	case "periods":
		runPeriods(log)
	case "check":
		runCheck(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Bookkeeper CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ingest     Extract a statement (local file or gs:// URI) into the period")
	fmt.Println("  upload     Upload a statement file to GCS")
	fmt.Println("  bulk-post  Post every unlinked transaction against the suspense account")
	fmt.Println("  export     Export the period to CSV, BigQuery or Notion")
	fmt.Println("  periods    List or delete saved periods")
	fmt.Println("  check      Verify the period's ledger consistency")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// commonFlags registers the flags every period command accepts.
func commonFlags(fs *flag.FlagSet) (envFile, period *string) {
	envFile = fs.String("env", "", "Path to a .env file (default: ./.env when present)")
	period = fs.String("period", "", "Period ID (overrides PERIOD_ID)")
	return envFile, period
}

func loadConfig(log zerolog.Logger, envFile, period string, required ...string) *config.Config {
	cfg, err := config.Load(envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if period != "" {
		cfg.PeriodID = period
	}
	if err := cfg.Validate(required...); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return cfg
}

// openBook opens the configured store and the book of cfg.PeriodID. A
// read-only book must name a saved period and is never written back. The
// returned function closes the store.
func openBook(ctx context.Context, log zerolog.Logger, cfg *config.Config, readOnly bool) (*reconcile.Book, func()) {
	repo, closeStore, err := bootstrap.OpenRepository(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open period store")
	}
	open := bootstrap.OpenBook
	if readOnly {
		open = bootstrap.OpenReadOnlyBook
	}
	book, err := open(ctx, repo, cfg.PeriodID, log)
	if err != nil {
		closeStore()
		log.Fatal().Err(err).Str("period_id", cfg.PeriodID).Msg("Failed to open period")
	}
	return book, func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("Failed to close period store")
		}
	}
}

func runIngest(log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	envFile, period := commonFlags(fs)
	uri := fs.String("uri", "", "Statement path or gs://bucket/object URI")
	dryRun := fs.Bool("dry-run", false, "Extract and print transactions without importing")
	fs.Parse(os.Args[2:])

	if *uri == "" {
		log.Fatal().Msg("Error: --uri is required")
	}
	cfg := loadConfig(log, *envFile, *period)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	book, closeStore := openBook(ctx, log, cfg, false)
	defer closeStore()

	extractor, err := bootstrap.NewExtractor(ctx, cfg.Extraction, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extractor")
	}

	log.Info().Str("uri", *uri).Str("period_id", cfg.PeriodID).Bool("dry_run", *dryRun).Msg("Starting ingestion")

	state, err := pipeline.IngestStatement(ctx, *uri, pipeline.SourceFetcher{}, extractor, book, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	if *dryRun {
		for _, tx := range state.Transactions {
			fmt.Printf("%s  %-7s %12s  %s\n", tx.Date.Format(domain.DateLayout), tx.Type, tx.Amount.StringFixed(2), tx.Description)
		}
		fmt.Printf("\n%d transactions extracted (dry run, nothing imported).\n", len(state.Transactions))
		return
	}
	fmt.Printf("Ingestion completed: %d added, %d already present.\n", state.Result.Added, state.Result.Skipped)
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket name (or set GCS_BUCKET env)")
	objectName := fs.String("object", "", "GCS object name (defaults to statements/<filename>)")
	filePath := fs.String("file", "", "Path to local statement file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}
	if *objectName == "" {
		*objectName = "statements/" + filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read file")
	}

	blobs, err := gcs.NewBlobStore(ctx, *bucketName, "")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS client")
	}
	defer blobs.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := blobs.Put(ctx, *objectName, data); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
}

func runBulkPost(log zerolog.Logger) {
	fs := flag.NewFlagSet("bulk-post", flag.ExitOnError)
	envFile, period := commonFlags(fs)
	bankCode := fs.String("bank", "", "Code of the bank account the statement belongs to")
	ids := fs.String("ids", "", "Comma-separated transaction IDs (default: all unlinked)")
	fs.Parse(os.Args[2:])

	if *bankCode == "" {
		log.Fatal().Msg("Error: --bank is required")
	}
	cfg := loadConfig(log, *envFile, *period)

	ctx := logger.WithContext(context.Background(), log)
	book, closeStore := openBook(ctx, log, cfg, false)
	defer closeStore()

	bank, ok := book.AccountByCode(*bankCode)
	if !ok {
		log.Fatal().Str("code", *bankCode).Msg("Bank account not found")
	}

	var txIDs []string
	if *ids != "" {
		for _, id := range strings.Split(*ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				txIDs = append(txIDs, id)
			}
		}
	} else {
		for _, tx := range book.UnlinkedTransactions() {
			txIDs = append(txIDs, tx.ID)
		}
	}

	res, err := book.BulkPost(ctx, txIDs, bank.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("Bulk post failed")
	}
	for _, id := range res.Unpostable {
		log.Warn().Str("transaction_id", id).Msg("Transaction has no postable amount")
	}
	fmt.Printf("Posted %d entries, skipped %d transactions.\n", res.Posted, res.Skipped)
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	envFile, period := commonFlags(fs)
	format := fs.String("format", "csv", "Export target: csv, bigquery or notion")
	what := fs.String("what", "entries", "Rows to export for csv and bigquery: entries or transactions")
	out := fs.String("out", "", "Output file for csv (default: stdout)")
	dryRun := fs.Bool("dry-run", false, "Preview a Notion sync without writing")
	fs.Parse(os.Args[2:])

	if *what != "entries" && *what != "transactions" {
		log.Fatal().Str("what", *what).Msg("Error: --what must be entries or transactions")
	}

	var required []string
	switch *format {
	case "csv":
	case "bigquery":
		required = []string{"BIGQUERY_PROJECT", "BIGQUERY_DATASET"}
	case "notion":
		required = []string{"NOTION_TOKEN", "NOTION_DATABASE_ID"}
	default:
		log.Fatal().Str("format", *format).Msg("Error: --format must be csv, bigquery or notion")
	}
	cfg := loadConfig(log, *envFile, *period, required...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	book, closeStore := openBook(ctx, log, cfg, true)
	defer closeStore()
	snap := book.Snapshot()

	switch *format {
	case "csv":
		exportCSV(log, snap, *what, *out)
	case "bigquery":
		sink, err := exportbq.NewSink(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer sink.Close()

		var n int
		if *what == "entries" {
			n, err = sink.ExportEntries(ctx, cfg.PeriodID, export.EntryRows(snap))
		} else {
			n, err = sink.ExportTransactions(ctx, cfg.PeriodID, export.TransactionRows(snap))
		}
		if err != nil {
			log.Fatal().Err(err).Msg("BigQuery export failed")
		}
		fmt.Printf("Exported %d new rows to %s.%s.\n", n, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
	case "notion":
		log.Info().Str("period_id", cfg.PeriodID).Bool("dry_run", *dryRun).Msg("Starting Notion sync")
		sink := notion.NewSink(notion.NewClient(cfg.Notion.Token), cfg.Notion.DatabaseID, *dryRun)
		res, err := sink.SyncPeriod(ctx, cfg.PeriodID, export.EntryRows(snap))
		if err != nil {
			log.Fatal().Err(err).Msg("Sync failed")
		}
		fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed.\n",
			res.Created, res.Updated, res.Archived, res.Failed)
	}
}

func exportCSV(log zerolog.Logger, snap domain.Snapshot, what, out string) {
	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			log.Fatal().Err(err).Str("file", out).Msg("Failed to create output file")
		}
		defer f.Close()
		w = f
	}

	var err error
	if what == "entries" {
		err = export.WriteEntriesCSV(w, export.EntryRows(snap))
	} else {
		err = export.WriteTransactionsCSV(w, export.TransactionRows(snap))
	}
	if err != nil {
		log.Fatal().Err(err).Msg("CSV export failed")
	}
}

func runPeriods(log zerolog.Logger) {
	fs := flag.NewFlagSet("periods", flag.ExitOnError)
	envFile, _ := commonFlags(fs)
	del := fs.String("delete", "", "Delete the saved period with this ID")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(log, *envFile, "")
	ctx := logger.WithContext(context.Background(), log)

	repo, closeStore, err := bootstrap.OpenRepository(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open period store")
	}
	defer closeStore()

	if *del != "" {
		if err := repo.DeletePeriod(ctx, *del); err != nil {
			log.Fatal().Err(err).Str("period_id", *del).Msg("Failed to delete period")
		}
		fmt.Printf("Deleted period %s.\n", *del)
		return
	}

	ids, err := repo.ListPeriods(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list periods")
	}
	if len(ids) == 0 {
		fmt.Println("No saved periods.")
		return
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}

func runCheck(log zerolog.Logger) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	envFile, period := commonFlags(fs)
	fs.Parse(os.Args[2:])

	cfg := loadConfig(log, *envFile, *period)
	ctx := logger.WithContext(context.Background(), log)

	book, closeStore := openBook(ctx, log, cfg, true)
	defer closeStore()

	if err := book.CheckInvariants(); err != nil {
		log.Fatal().Err(err).Str("period_id", cfg.PeriodID).Msg("Ledger is inconsistent")
	}

	problems := book.ValidateAccounts()
	for id, errs := range problems {
		log.Warn().Str("account_id", id).Interface("errors", errs).Msg("Account has validation errors")
	}
	snap := book.Snapshot()
	fmt.Printf("Period %s is consistent: %d entries, %d transactions (%d unlinked), %d account problems.\n",
		cfg.PeriodID, len(snap.Entries), len(snap.Transactions), len(book.UnlinkedTransactions()), len(problems))
}
