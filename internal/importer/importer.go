// Package importer runs the statement import pipeline: parse a file, assign each
// transaction to its statement period, insert with fingerprint dedup and
// recalculate the totals of every statement touched.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/fingerprint"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/idgen"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/parser"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/period"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/registry"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/statements"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/store"
)

var (
	// ErrMappingRequired is returned for CSV files whose header gives no confident column mapping
	ErrMappingRequired = parser.ErrMappingRequired
	// ErrEmptyFile is returned for files with no content
	ErrEmptyFile = errors.New("file is empty")
	// ErrInvalidClosingDay is returned when a closing day override is outside [1,31]
	ErrInvalidClosingDay = errors.New("closing day must be in [1,31]")
)

// Categorizer assigns a category to a transaction description
type Categorizer interface {
	Categorize(description string) domain.Category
}

// Importer orchestrates statement imports
type Importer struct {
	store      store.Store
	statements *statements.Service
	registry   *registry.Registry
	rules      Categorizer
	logger     zerolog.Logger
	now        func() time.Time
}

// Option configures an Importer
type Option func(*Importer)

// WithRules categorizes imported transactions that carry no category
func WithRules(c Categorizer) Option {
	return func(im *Importer) { im.rules = c }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// New creates an importer backed by s
func New(s store.Store, opts ...Option) *Importer {
	im := &Importer{
		store:      s,
		statements: statements.New(s),
		registry:   registry.New(),
		logger:     zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Request is one batch of parsed transactions for a card
type Request struct {
	CardID       string
	Transactions []domain.ParsedTransaction
	FileName     string
	FileHash     string
	FileType     domain.FileType
	// ClosingDay overrides the card's stored closing day when set
	ClosingDay *int
}

// group is the set of transactions assigned to one reference month
type group struct {
	referenceMonth time.Time
	transactions   []domain.ParsedTransaction
}

// ImportTransactions imports a batch for a card the user owns.
//
// Only ownership failures and a failed audit record creation abort the call.
// A failed statement get-or-create skips that month's transactions, a failed
// insert skips that record, and duplicates are counted. Partial success is
// reported through the result counts.
func (im *Importer) ImportTransactions(ctx context.Context, userID string, req Request) (*domain.ImportResult, error) {
	card, err := im.store.GetCard(ctx, userID, req.CardID)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize card %s: %w", req.CardID, err)
	}
	if req.ClosingDay != nil && (*req.ClosingDay < 1 || *req.ClosingDay > 31) {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidClosingDay, *req.ClosingDay)
	}

	imp := &domain.Import{
		ID:           idgen.NewImportID(),
		UserID:       userID,
		CreditCardID: card.ID,
		FileName:     req.FileName,
		FileHash:     req.FileHash,
		FileType:     req.FileType,
		Status:       domain.ImportStatusProcessing,
		TotalRecords: len(req.Transactions),
		CreatedAt:    im.now().UTC(),
	}
	if err := im.store.CreateImport(ctx, imp); err != nil {
		return nil, fmt.Errorf("failed to create import record: %w", err)
	}

	log := im.logger.With().
		Str("import_id", imp.ID).
		Str("card_id", card.ID).
		Str("file", req.FileName).
		Logger()
	log.Info().Int("total_records", imp.TotalRecords).Msg("import started")

	// Statement dates follow the effective closing day
	effective := *card
	if req.ClosingDay != nil {
		effective.ClosingDay = req.ClosingDay
	}

	var (
		imported, duplicates int
		touched              []string
		failedGroups         int
	)

	valid := make([]domain.ParsedTransaction, 0, len(req.Transactions))
	for _, parsed := range req.Transactions {
		if err := parsed.Validate(); err != nil {
			log.Warn().Err(err).Str("description", parsed.Description).Msg("skipping invalid record")
			continue
		}
		valid = append(valid, parsed)
	}

	groups := groupByReferenceMonth(valid, effective.ClosingDay)
	for _, g := range groups {
		stmt, created, err := im.statements.GetOrCreate(ctx, userID, &effective, g.referenceMonth)
		if err != nil {
			failedGroups++
			log.Error().Err(err).
				Str("reference_month", period.MonthKey(g.referenceMonth)).
				Int("records", len(g.transactions)).
				Msg("failed to get or create statement, skipping group")
			continue
		}

		inserted := 0
		for _, parsed := range g.transactions {
			txn := im.newTransaction(userID, imp.ID, stmt, parsed)
			err := im.store.InsertTransaction(ctx, txn)
			switch {
			case err == nil:
				inserted++
			case errors.Is(err, store.ErrDuplicate):
				duplicates++
			default:
				log.Warn().Err(err).Str("description", parsed.Description).Msg("failed to insert transaction, skipping record")
			}
		}
		imported += inserted

		// A statement opened by this import that received nothing is rolled back
		if created && inserted == 0 {
			err := im.statements.DiscardIfEmpty(ctx, stmt.ID)
			if err == nil {
				continue
			}
			log.Warn().Err(err).Str("statement_id", stmt.ID).Msg("failed to discard empty statement")
		}
		touched = append(touched, stmt.ID)
	}

	for _, id := range touched {
		if _, err := im.statements.Recalculate(ctx, id); err != nil {
			log.Warn().Err(err).Str("statement_id", id).Msg("failed to recalculate statement total")
		}
	}

	completedAt := im.now().UTC()
	imp.Status = domain.ImportStatusCompleted
	if len(groups) > 0 && failedGroups == len(groups) {
		imp.Status = domain.ImportStatusFailed
	}
	imp.ImportedRecords = imported
	imp.DuplicateRecords = duplicates
	imp.CompletedAt = &completedAt
	if err := im.store.UpdateImport(ctx, imp); err != nil {
		log.Error().Err(err).Msg("failed to update import record")
	}

	result := &domain.ImportResult{
		Success:        imp.Status == domain.ImportStatusCompleted,
		ImportID:       imp.ID,
		ImportedCount:  imported,
		DuplicateCount: duplicates,
		SkippedCount:   imp.TotalRecords - imported - duplicates,
		TotalRecords:   imp.TotalRecords,
	}
	log.Info().
		Int("imported", result.ImportedCount).
		Int("duplicates", result.DuplicateCount).
		Int("skipped", result.SkippedCount).
		Int("statements", len(touched)).
		Msg("import finished")
	return result, nil
}

// newTransaction builds the row for a validated parsed record
func (im *Importer) newTransaction(userID, importID string, stmt *domain.Statement, parsed domain.ParsedTransaction) *domain.Transaction {
	category := parsed.Category
	if category == "" && im.rules != nil {
		category = string(im.rules.Categorize(parsed.Description))
	}

	return &domain.Transaction{
		ID:           idgen.NewTransactionID(),
		UserID:       userID,
		CreditCardID: stmt.CreditCardID,
		StatementID:  stmt.ID,
		Date:         domain.TruncateToDate(parsed.Date),
		Amount:       parsed.Amount.Abs(),
		Description:  parsed.Description,
		Category:     category,
		ExternalID:   parsed.ExternalID,
		ImportID:     importID,
		Fingerprint:  fingerprint.ForTransaction(parsed),
	}
}

// groupByReferenceMonth partitions transactions by statement month, keeping the
// order in which months first appear
func groupByReferenceMonth(txns []domain.ParsedTransaction, closingDay *int) []*group {
	var groups []*group
	index := make(map[string]*group)

	for _, txn := range txns {
		ref := period.ReferenceMonth(txn.Date, closingDay)
		key := period.MonthKey(ref)
		g, ok := index[key]
		if !ok {
			g = &group{referenceMonth: ref}
			index[key] = g
			groups = append(groups, g)
		}
		g.transactions = append(g.transactions, txn)
	}
	return groups
}
