// Package statements maintains statement rows and their derived totals
package statements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/period"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/store"
)

// Store is the persistence the service needs
type Store interface {
	store.StatementStore
	ListTransactionsByStatement(ctx context.Context, statementID string) ([]*domain.Transaction, error)
}

// Service gets-or-creates statements and recalculates their totals
type Service struct {
	store Store
}

// New creates a statement service
func New(s Store) *Service {
	return &Service{store: s}
}

// GetOrCreate returns the card's statement for referenceMonth, creating an open
// statement when none exists; created reports whether this call made it. A
// creation conflict means a concurrent writer won the race, so the lookup is
// retried.
func (s *Service) GetOrCreate(ctx context.Context, userID string, card *domain.CreditCard, referenceMonth time.Time) (stmt *domain.Statement, created bool, err error) {
	stmt, err = s.store.FindStatement(ctx, userID, card.ID, referenceMonth)
	if err == nil {
		return stmt, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to find statement: %w", err)
	}

	closing, due := period.StatementDates(referenceMonth, card)
	stmt = &domain.Statement{
		ID:             period.StatementID(referenceMonth, card.ID),
		UserID:         userID,
		CreditCardID:   card.ID,
		ReferenceMonth: referenceMonth,
		ClosingDate:    closing,
		DueDate:        due,
		TotalAmount:    decimal.Zero,
		Status:         domain.StatementStatusOpen,
	}

	err = s.store.CreateStatement(ctx, stmt)
	if err == nil {
		return stmt, true, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return nil, false, fmt.Errorf("failed to create statement %s: %w", stmt.ID, err)
	}

	existing, err := s.store.FindStatement(ctx, userID, card.ID, referenceMonth)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find statement after create conflict: %w", err)
	}
	return existing, false, nil
}

// DiscardIfEmpty removes a statement created for a write that did not land.
// A statement that gained transactions in the meantime is kept.
func (s *Service) DiscardIfEmpty(ctx context.Context, statementID string) error {
	err := s.store.DeleteEmptyStatement(ctx, statementID)
	if err == nil || errors.Is(err, store.ErrConflict) {
		return nil
	}
	return fmt.Errorf("failed to discard statement %s: %w", statementID, err)
}

// Recalculate sums the statement's live transactions and persists the total.
// It is the only writer of Statement.TotalAmount.
func (s *Service) Recalculate(ctx context.Context, statementID string) (decimal.Decimal, error) {
	txns, err := s.store.ListTransactionsByStatement(ctx, statementID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list transactions of statement %s: %w", statementID, err)
	}

	total := Sum(txns)
	if err := s.store.UpdateStatementTotal(ctx, statementID, total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to update total of statement %s: %w", statementID, err)
	}
	return total, nil
}

// Sum adds up transaction amounts exactly
func Sum(txns []*domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, txn := range txns {
		total = total.Add(txn.Amount)
	}
	return total
}
