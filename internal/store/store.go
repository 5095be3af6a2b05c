// Package store defines the persistence contracts of the statement pipeline.
//
// Adapters (memory, sqlite, firestore) enforce two uniqueness constraints
// themselves: one transaction per fingerprint within a user's card, and one
// statement per (card, reference month). Violations surface as ErrDuplicate
// and ErrConflict so callers never pre-check.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a record belongs to another user
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicate is returned when a transaction fingerprint already exists for the card
	ErrDuplicate = errors.New("duplicate transaction fingerprint")
	// ErrConflict is returned when a statement already exists for the card and month
	ErrConflict = errors.New("statement already exists")
)

// CardStore resolves cards for ownership checks
type CardStore interface {
	// GetCard returns ErrNotFound when the card does not exist and ErrForbidden
	// when it belongs to another user
	GetCard(ctx context.Context, userID, cardID string) (*domain.CreditCard, error)
	SaveCard(ctx context.Context, card *domain.CreditCard) error
}

// StatementStore persists statements
type StatementStore interface {
	// FindStatement returns ErrNotFound when no statement exists for the month
	FindStatement(ctx context.Context, userID, cardID string, referenceMonth time.Time) (*domain.Statement, error)
	// CreateStatement returns ErrConflict when the card already has a statement for the month
	CreateStatement(ctx context.Context, stmt *domain.Statement) error
	GetStatement(ctx context.Context, userID, statementID string) (*domain.Statement, error)
	ListStatements(ctx context.Context, userID, cardID string) ([]*domain.Statement, error)
	UpdateStatementTotal(ctx context.Context, statementID string, total decimal.Decimal) error
	// DeleteEmptyStatement removes a statement no transaction references.
	// ErrConflict when it still has transactions, ErrNotFound when missing.
	DeleteEmptyStatement(ctx context.Context, statementID string) error
}

// TransactionStore persists card transactions
type TransactionStore interface {
	// InsertTransaction returns ErrDuplicate when the fingerprint exists for the user's card
	InsertTransaction(ctx context.Context, txn *domain.Transaction) error
	ListTransactionsByStatement(ctx context.Context, statementID string) ([]*domain.Transaction, error)
	GetTransaction(ctx context.Context, userID, transactionID string) (*domain.Transaction, error)
	// UpdateTransaction replaces the stored row. ErrDuplicate when the new fingerprint is taken.
	UpdateTransaction(ctx context.Context, txn *domain.Transaction) error
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
}

// ImportStore persists import audit records
type ImportStore interface {
	CreateImport(ctx context.Context, imp *domain.Import) error
	UpdateImport(ctx context.Context, imp *domain.Import) error
	// ListImports returns the user's most recent import records, newest first
	ListImports(ctx context.Context, userID string, limit int) ([]*domain.Import, error)
}

// Store is the full persistence surface
type Store interface {
	CardStore
	StatementStore
	TransactionStore
	ImportStore
}
