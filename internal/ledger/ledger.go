// Package ledger handles manual transaction edits. Every mutation recalculates
// the totals of the statements it touches.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/fingerprint"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/idgen"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/period"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/statements"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/store"
)

// ErrInvalid is returned when the edited transaction fails validation
var ErrInvalid = errors.New("invalid transaction")

// Service creates, updates and deletes card transactions
type Service struct {
	store      store.Store
	statements *statements.Service
	logger     zerolog.Logger
}

// New creates a ledger service
func New(s store.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:      s,
		statements: statements.New(s),
		logger:     logger,
	}
}

// CreateInput is a manually entered transaction
type CreateInput struct {
	CardID      string          `json:"cardId"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
}

// UpdateInput holds the fields to change. Nil fields are left as they are.
type UpdateInput struct {
	Date        *time.Time       `json:"date,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
}

// Create inserts a transaction into the statement its date falls in.
// Returns store.ErrDuplicate when the card already has the same transaction.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*domain.Transaction, error) {
	card, err := s.store.GetCard(ctx, userID, in.CardID)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize card %s: %w", in.CardID, err)
	}

	date := domain.TruncateToDate(in.Date)
	amount := in.Amount.Abs()
	description := strings.TrimSpace(in.Description)
	if err := (domain.ParsedTransaction{Date: date, Description: description, Amount: amount}).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	stmt, created, err := s.statements.GetOrCreate(ctx, userID, card, period.ReferenceMonth(date, card.ClosingDay))
	if err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		ID:           idgen.NewTransactionID(),
		UserID:       userID,
		CreditCardID: card.ID,
		StatementID:  stmt.ID,
		Date:         date,
		Amount:       amount,
		Description:  description,
		Category:     strings.TrimSpace(in.Category),
		Fingerprint:  fingerprint.Generate(date, amount, description, ""),
	}
	if err := s.store.InsertTransaction(ctx, txn); err != nil {
		if created {
			s.discard(ctx, stmt.ID)
		}
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	s.recalculate(ctx, stmt.ID)
	return txn, nil
}

// Update edits a transaction. The fingerprint is regenerated, and a date change
// that crosses a closing day moves the transaction to another statement; both
// statements are recalculated.
func (s *Service) Update(ctx context.Context, userID, transactionID string, in UpdateInput) (*domain.Transaction, error) {
	existing, err := s.store.GetTransaction(ctx, userID, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", transactionID, err)
	}
	card, err := s.store.GetCard(ctx, userID, existing.CreditCardID)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize card %s: %w", existing.CreditCardID, err)
	}

	updated := *existing
	if in.Date != nil {
		updated.Date = domain.TruncateToDate(*in.Date)
	}
	if in.Amount != nil {
		updated.Amount = in.Amount.Abs()
	}
	if in.Description != nil {
		updated.Description = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		updated.Category = strings.TrimSpace(*in.Category)
	}
	if err := (domain.ParsedTransaction{Date: updated.Date, Description: updated.Description, Amount: updated.Amount}).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	// Imported rows keep their external ID in the fingerprint
	updated.Fingerprint = fingerprint.Generate(updated.Date, updated.Amount, updated.Description, updated.ExternalID)

	stmt, created, err := s.statements.GetOrCreate(ctx, userID, card, period.ReferenceMonth(updated.Date, card.ClosingDay))
	if err != nil {
		return nil, err
	}
	updated.StatementID = stmt.ID

	if err := s.store.UpdateTransaction(ctx, &updated); err != nil {
		if created {
			s.discard(ctx, stmt.ID)
		}
		return nil, fmt.Errorf("failed to update transaction %s: %w", transactionID, err)
	}

	s.recalculate(ctx, existing.StatementID)
	if updated.StatementID != existing.StatementID {
		s.recalculate(ctx, updated.StatementID)
	}
	return &updated, nil
}

// Delete removes a transaction and recalculates its statement
func (s *Service) Delete(ctx context.Context, userID, transactionID string) error {
	existing, err := s.store.GetTransaction(ctx, userID, transactionID)
	if err != nil {
		return fmt.Errorf("failed to get transaction %s: %w", transactionID, err)
	}
	if err := s.store.DeleteTransaction(ctx, userID, transactionID); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", transactionID, err)
	}

	s.recalculate(ctx, existing.StatementID)
	return nil
}

// discard drops a statement this call opened for a write that failed
func (s *Service) discard(ctx context.Context, statementID string) {
	if err := s.statements.DiscardIfEmpty(ctx, statementID); err != nil {
		s.logger.Warn().Err(err).Str("statement_id", statementID).Msg("failed to discard empty statement")
	}
}

// recalculate refreshes a statement total. A failure leaves the stale total in
// place until the next mutation.
func (s *Service) recalculate(ctx context.Context, statementID string) {
	if _, err := s.statements.Recalculate(ctx, statementID); err != nil {
		s.logger.Warn().Err(err).Str("statement_id", statementID).Msg("failed to recalculate statement total")
	}
}
