package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/idgen"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/importer"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/logger"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/output"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/rules"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/scanner"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/store"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/store/memory"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/store/sqlite"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/ui"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/validate"
)

const version = "0.1.0"

// options holds the parsed command line
type options struct {
	dbPath     string
	userID     string
	cardID     string
	cardName   string
	closingDay int
	dueDay     int
	file       string
	dir        string
	mapping    string
	skipHeader bool
	rulesFile  string
	dryRun     bool
	verify     bool
	exportFile string
	merge      bool
	verbose    bool
}

// job is one statement file bound to the card it is imported into
type job struct {
	path     string
	cardID   string
	cardName string
	period   string
}

func main() {
	var opts options
	versionFlag := flag.Bool("version", false, "Show version")
	flag.StringVar(&opts.dbPath, "db", "cardstatements.db", "SQLite database file")
	flag.StringVar(&opts.userID, "user", "", "Owner of the imported data (required)")
	flag.StringVar(&opts.cardID, "card", "", "Card ID to import into")
	flag.StringVar(&opts.cardName, "card-name", "", "Card name; derives the card ID when -card is empty")
	flag.IntVar(&opts.closingDay, "closing-day", 0, "Card closing day (1-31), stored on the card")
	flag.IntVar(&opts.dueDay, "due-day", 0, "Card payment due day (1-31), stored on the card")
	flag.StringVar(&opts.file, "file", "", "Statement file to import (.csv, .ofx, .qfx)")
	flag.StringVar(&opts.dir, "dir", "", "Directory of statement files, laid out as {card}/{YYYY-MM}/file")
	flag.StringVar(&opts.mapping, "mapping", "", "CSV column indexes: date,description,amount[,category]")
	flag.BoolVar(&opts.skipHeader, "skip-header", false, "Skip the first CSV row when -mapping is set")
	flag.StringVar(&opts.rulesFile, "rules", "", "Category rules file (default: embedded rules)")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Import into memory and show the result without writing")
	flag.BoolVar(&opts.verify, "verify", false, "Reconcile statement totals after importing")
	flag.StringVar(&opts.exportFile, "export", "", "Write the card's statements as JSON to this file (- for stdout)")
	flag.BoolVar(&opts.merge, "merge", false, "Merge the export into an existing file")
	flag.BoolVar(&opts.verbose, "verbose", false, "Show detailed import logs")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `cardimport - Credit card statement importer

Usage:
  cardimport -user ID [-card ID | -card-name NAME] (-file PATH | -dir PATH) [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Import one CSV export into a card closing on the 10th
  cardimport -user me -card-name "Nubank" -closing-day 10 -due-day 17 -file fatura.csv

  # Import a directory tree, one card per top-level directory
  cardimport -user me -dir ~/faturas -verify

  # Preview a headerless CSV without writing
  cardimport -user me -card card-nubank -file fatura.csv -mapping 0,2,3 -dry-run
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("cardimport version %s\n", version)
		os.Exit(0)
	}

	if err := opts.check(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts); err != nil {
		ui.Error(err.Error())
		os.Exit(1)
	}
}

// check validates flag combinations before anything is opened
func (o options) check() error {
	if o.userID == "" {
		return fmt.Errorf("-user flag is required")
	}
	if (o.file == "") == (o.dir == "") {
		return fmt.Errorf("exactly one of -file or -dir is required")
	}
	if o.file != "" && o.cardID == "" && o.cardName == "" {
		return fmt.Errorf("-card or -card-name is required with -file")
	}
	if o.closingDay < 0 || o.closingDay > 31 {
		return fmt.Errorf("-closing-day must be in [1,31], got %d", o.closingDay)
	}
	if o.dueDay < 0 || o.dueDay > 31 {
		return fmt.Errorf("-due-day must be in [1,31], got %d", o.dueDay)
	}
	if o.merge && (o.exportFile == "" || o.exportFile == "-") {
		return fmt.Errorf("-merge requires -export with a file path")
	}
	return nil
}

func run(ctx context.Context, opts options) error {
	log := zerolog.Nop()
	if opts.verbose {
		log = logger.New()
		if err := logger.SetLevel("debug"); err != nil {
			return err
		}
	}

	mapping, err := domain.ParseColumnMapping(opts.mapping)
	if err != nil {
		return err
	}

	engine, err := rules.Load(opts.rulesFile)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	jobs, err := collectJobs(opts)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no statement files found in %s (supported: .csv, .ofx, .qfx)", opts.dir)
	}

	var st store.Store
	if opts.dryRun {
		st = memory.New()
	} else {
		db, err := sqlite.Open(ctx, opts.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		st = db
	}

	im := importer.New(st, importer.WithRules(engine), importer.WithLogger(log))

	title := "Importing Card Statements"
	if opts.dryRun {
		title += " (dry run)"
	}
	ui.Header(title)

	ui.Step(1, 3, "Preparing cards")
	var cardIDs []string
	seen := make(map[string]bool)
	for _, j := range jobs {
		if seen[j.cardID] {
			continue
		}
		seen[j.cardID] = true
		card, err := ensureCard(ctx, st, opts, j.cardID, j.cardName)
		if err != nil {
			return fmt.Errorf("card %s: %w", j.cardID, err)
		}
		cardIDs = append(cardIDs, card.ID)
		ui.Success(fmt.Sprintf("%s (%s)", card.Name, card.ID))
	}

	ui.Step(2, 3, fmt.Sprintf("Importing %d files", len(jobs)))
	failed := 0
	for _, j := range jobs {
		if err := importJob(ctx, im, opts, j, mapping, log); err != nil {
			failed++
			ui.Warning(fmt.Sprintf("%s: %v", filepath.Base(j.path), err))
			if errors.Is(err, importer.ErrMappingRequired) {
				ui.Info("pass -mapping date,description,amount[,category] to import this file")
			}
		}
	}

	ui.Step(3, 3, "Statements")
	verifyFailed := false
	for _, cardID := range cardIDs {
		stmts, err := st.ListStatements(ctx, opts.userID, cardID)
		if err != nil {
			return fmt.Errorf("failed to list statements of %s: %w", cardID, err)
		}
		ui.Info(cardID)
		ui.StatementTable(stmts)

		if opts.verify {
			ok, err := verifyCard(ctx, st, stmts)
			if err != nil {
				return err
			}
			verifyFailed = verifyFailed || !ok
		}
	}

	if opts.exportFile != "" {
		if len(cardIDs) != 1 {
			return fmt.Errorf("-export needs a single card, got %d", len(cardIDs))
		}
		export, err := output.Collect(ctx, st, opts.userID, cardIDs[0])
		if err != nil {
			return fmt.Errorf("failed to collect export: %w", err)
		}
		path := opts.exportFile
		if path == "-" {
			path = ""
		}
		if err := output.WriteExportToFile(export, output.WriteOptions{FilePath: path, MergeMode: opts.merge}); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to import", failed, len(jobs))
	}
	if verifyFailed {
		return fmt.Errorf("statement verification failed")
	}
	return nil
}

// collectJobs resolves the files to import and the card each one belongs to
func collectJobs(opts options) ([]job, error) {
	if opts.file != "" {
		cardID, err := resolveCardID(opts.cardID, opts.cardName)
		if err != nil {
			return nil, err
		}
		return []job{{path: opts.file, cardID: cardID, cardName: opts.cardName}}, nil
	}

	results, err := scanner.New(opts.dir).Scan()
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", opts.dir, err)
	}

	jobs := make([]job, 0, len(results))
	for _, r := range results {
		name := opts.cardName
		if name == "" && opts.cardID == "" {
			name = r.CardName
		}
		if opts.cardID == "" && name == "" {
			return nil, fmt.Errorf("cannot derive a card for %s: move it under a card directory or pass -card", r.Path)
		}
		cardID, err := resolveCardID(opts.cardID, name)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job{path: r.Path, cardID: cardID, cardName: name, period: r.Period})
	}
	return jobs, nil
}

func resolveCardID(cardID, cardName string) (string, error) {
	if cardID != "" {
		return cardID, nil
	}
	id, err := idgen.CardID(cardName)
	if err != nil {
		return "", fmt.Errorf("invalid card name: %w", err)
	}
	return id, nil
}

// ensureCard loads the card, creating it when missing, and applies the
// closing and due days given on the command line
func ensureCard(ctx context.Context, cards store.CardStore, opts options, cardID, name string) (*domain.CreditCard, error) {
	card, err := cards.GetCard(ctx, opts.userID, cardID)
	changed := false
	switch {
	case errors.Is(err, store.ErrNotFound):
		if name == "" {
			name = cardID
		}
		card = &domain.CreditCard{ID: cardID, UserID: opts.userID, Name: name}
		changed = true
	case err != nil:
		return nil, err
	}

	if opts.closingDay > 0 && (card.ClosingDay == nil || *card.ClosingDay != opts.closingDay) {
		card.ClosingDay = domain.IntPtr(opts.closingDay)
		changed = true
	}
	if opts.dueDay > 0 && (card.DueDay == nil || *card.DueDay != opts.dueDay) {
		card.DueDay = domain.IntPtr(opts.dueDay)
		changed = true
	}
	if !changed {
		return card, nil
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}
	if err := cards.SaveCard(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to save card: %w", err)
	}
	return card, nil
}

func importJob(ctx context.Context, im *importer.Importer, opts options, j job, mapping *domain.ColumnMapping, log zerolog.Logger) error {
	content, err := os.ReadFile(j.path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	fileName := filepath.Base(j.path)
	log.Debug().
		Str("file", j.path).
		Str("card", j.cardID).
		Str("period", j.period).
		Msg("importing statement file")

	req := importer.FileRequest{
		CardID:     j.cardID,
		FileName:   fileName,
		Content:    content,
		SkipHeader: opts.skipHeader,
	}
	// Explicit mappings only make sense for CSV input
	if strings.EqualFold(filepath.Ext(fileName), ".csv") {
		req.Mapping = mapping
	}

	result, err := im.ImportFile(ctx, opts.userID, req)
	if err != nil {
		return err
	}
	ui.ImportSummary(fileName, result)
	return nil
}

// verifyCard reconciles the card's statements and reports the findings
func verifyCard(ctx context.Context, st store.Store, stmts []*domain.Statement) (bool, error) {
	byStatement := make(map[string][]*domain.Transaction, len(stmts))
	for _, stmt := range stmts {
		txns, err := st.ListTransactionsByStatement(ctx, stmt.ID)
		if err != nil {
			return false, fmt.Errorf("failed to list transactions of %s: %w", stmt.ID, err)
		}
		byStatement[stmt.ID] = txns
	}

	result := validate.ValidateStatements(stmts, byStatement)
	for _, w := range result.Warnings {
		ui.Warning(fmt.Sprintf("%s %s: %s", w.Entity, w.ID, w.Message))
	}
	for _, e := range result.Errors {
		ui.Error(fmt.Sprintf("%s %s %s=%s: %s", e.Entity, e.ID, e.Field, e.Value, e.Message))
	}
	if result.OK() {
		ui.Success(fmt.Sprintf("%d statements reconciled", len(stmts)))
	}
	return result.OK(), nil
}
