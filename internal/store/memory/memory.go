// Package memory is an in-process Store used by tests and dry runs
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/period"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/store"
)

// Store implements store.Store with maps guarded by a mutex
type Store struct {
	mu           sync.RWMutex
	cards        map[string]domain.CreditCard
	statements   map[string]domain.Statement
	statementKey map[string]string // cardID|YYYY-MM -> statement ID
	transactions map[string]domain.Transaction
	fingerprints map[string]string // userID|cardID|fingerprint -> transaction ID
	imports      map[string]domain.Import
}

var _ store.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		cards:        make(map[string]domain.CreditCard),
		statements:   make(map[string]domain.Statement),
		statementKey: make(map[string]string),
		transactions: make(map[string]domain.Transaction),
		fingerprints: make(map[string]string),
		imports:      make(map[string]domain.Import),
	}
}

func monthKey(cardID string, ref time.Time) string {
	return cardID + "|" + period.MonthKey(ref)
}

func fingerprintKey(txn domain.Transaction) string {
	return txn.UserID + "|" + txn.CreditCardID + "|" + txn.Fingerprint
}

// SaveCard creates or replaces a card
func (s *Store) SaveCard(ctx context.Context, card *domain.CreditCard) error {
	if err := card.Validate(); err != nil {
		return fmt.Errorf("invalid card: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[card.ID] = *card
	return nil
}

// GetCard returns a copy of the card
func (s *Store) GetCard(ctx context.Context, userID, cardID string) (*domain.CreditCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	card, ok := s.cards[cardID]
	if !ok {
		return nil, fmt.Errorf("card %s: %w", cardID, store.ErrNotFound)
	}
	if card.UserID != userID {
		return nil, fmt.Errorf("card %s: %w", cardID, store.ErrForbidden)
	}
	return &card, nil
}

// FindStatement looks up the statement of a card month
func (s *Store) FindStatement(ctx context.Context, userID, cardID string, referenceMonth time.Time) (*domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.statementKey[monthKey(cardID, referenceMonth)]
	if !ok {
		return nil, fmt.Errorf("statement for card %s month %s: %w", cardID, period.MonthKey(referenceMonth), store.ErrNotFound)
	}
	stmt := s.statements[id]
	if stmt.UserID != userID {
		return nil, fmt.Errorf("statement %s: %w", id, store.ErrForbidden)
	}
	return &stmt, nil
}

// CreateStatement inserts a statement, enforcing one per card month
func (s *Store) CreateStatement(ctx context.Context, stmt *domain.Statement) error {
	if err := stmt.Validate(); err != nil {
		return fmt.Errorf("invalid statement: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := monthKey(stmt.CreditCardID, stmt.ReferenceMonth)
	if _, exists := s.statementKey[key]; exists {
		return fmt.Errorf("statement for card %s month %s: %w", stmt.CreditCardID, period.MonthKey(stmt.ReferenceMonth), store.ErrConflict)
	}
	if _, exists := s.statements[stmt.ID]; exists {
		return fmt.Errorf("statement %s: %w", stmt.ID, store.ErrConflict)
	}
	s.statements[stmt.ID] = *stmt
	s.statementKey[key] = stmt.ID
	return nil
}

// GetStatement returns a statement owned by the user
func (s *Store) GetStatement(ctx context.Context, userID, statementID string) (*domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stmt, ok := s.statements[statementID]
	if !ok {
		return nil, fmt.Errorf("statement %s: %w", statementID, store.ErrNotFound)
	}
	if stmt.UserID != userID {
		return nil, fmt.Errorf("statement %s: %w", statementID, store.ErrForbidden)
	}
	return &stmt, nil
}

// ListStatements returns the card's statements ordered by reference month
func (s *Store) ListStatements(ctx context.Context, userID, cardID string) ([]*domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Statement
	for _, stmt := range s.statements {
		if stmt.UserID == userID && stmt.CreditCardID == cardID {
			result = append(result, &stmt)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ReferenceMonth.Before(result[j].ReferenceMonth)
	})
	return result, nil
}

// UpdateStatementTotal writes the derived total
func (s *Store) UpdateStatementTotal(ctx context.Context, statementID string, total decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, ok := s.statements[statementID]
	if !ok {
		return fmt.Errorf("statement %s: %w", statementID, store.ErrNotFound)
	}
	stmt.TotalAmount = total
	s.statements[statementID] = stmt
	return nil
}

// DeleteEmptyStatement removes a statement that has no transactions
func (s *Store) DeleteEmptyStatement(ctx context.Context, statementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, ok := s.statements[statementID]
	if !ok {
		return fmt.Errorf("statement %s: %w", statementID, store.ErrNotFound)
	}
	for _, txn := range s.transactions {
		if txn.StatementID == statementID {
			return fmt.Errorf("statement %s has transactions: %w", statementID, store.ErrConflict)
		}
	}
	delete(s.statements, statementID)
	delete(s.statementKey, monthKey(stmt.CreditCardID, stmt.ReferenceMonth))
	return nil
}

// InsertTransaction inserts a transaction, enforcing fingerprint uniqueness
func (s *Store) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fingerprintKey(*txn)
	if _, exists := s.fingerprints[key]; exists {
		return fmt.Errorf("transaction %s: %w", txn.ID, store.ErrDuplicate)
	}
	if _, ok := s.statements[txn.StatementID]; !ok {
		return fmt.Errorf("statement %s: %w", txn.StatementID, store.ErrNotFound)
	}
	s.transactions[txn.ID] = *txn
	s.fingerprints[key] = txn.ID
	return nil
}

// ListTransactionsByStatement returns the statement's transactions ordered by date
func (s *Store) ListTransactionsByStatement(ctx context.Context, statementID string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, txn := range s.transactions {
		if txn.StatementID == statementID {
			result = append(result, &txn)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// GetTransaction returns a transaction owned by the user
func (s *Store) GetTransaction(ctx context.Context, userID, transactionID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, ok := s.transactions[transactionID]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, store.ErrNotFound)
	}
	if txn.UserID != userID {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, store.ErrForbidden)
	}
	return &txn, nil
}

// UpdateTransaction replaces a transaction, moving its fingerprint claim
func (s *Store) UpdateTransaction(ctx context.Context, txn *domain.Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.transactions[txn.ID]
	if !ok {
		return fmt.Errorf("transaction %s: %w", txn.ID, store.ErrNotFound)
	}
	newKey := fingerprintKey(*txn)
	if owner, exists := s.fingerprints[newKey]; exists && owner != txn.ID {
		return fmt.Errorf("transaction %s: %w", txn.ID, store.ErrDuplicate)
	}
	if _, ok := s.statements[txn.StatementID]; !ok {
		return fmt.Errorf("statement %s: %w", txn.StatementID, store.ErrNotFound)
	}

	delete(s.fingerprints, fingerprintKey(old))
	s.fingerprints[newKey] = txn.ID
	s.transactions[txn.ID] = *txn
	return nil
}

// DeleteTransaction removes a transaction and releases its fingerprint
func (s *Store) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.transactions[transactionID]
	if !ok {
		return fmt.Errorf("transaction %s: %w", transactionID, store.ErrNotFound)
	}
	if txn.UserID != userID {
		return fmt.Errorf("transaction %s: %w", transactionID, store.ErrForbidden)
	}
	delete(s.fingerprints, fingerprintKey(txn))
	delete(s.transactions, transactionID)
	return nil
}

// CreateImport inserts an import audit record
func (s *Store) CreateImport(ctx context.Context, imp *domain.Import) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.imports[imp.ID]; exists {
		return fmt.Errorf("import %s already exists", imp.ID)
	}
	s.imports[imp.ID] = *imp
	return nil
}

// UpdateImport replaces an import audit record
func (s *Store) UpdateImport(ctx context.Context, imp *domain.Import) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.imports[imp.ID]; !ok {
		return fmt.Errorf("import %s: %w", imp.ID, store.ErrNotFound)
	}
	s.imports[imp.ID] = *imp
	return nil
}

// ListImports returns the user's most recent import records, newest first
func (s *Store) ListImports(ctx context.Context, userID string, limit int) ([]*domain.Import, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Import
	for _, imp := range s.imports {
		if imp.UserID == userID {
			result = append(result, &imp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Import returns a copy of an import record. Not part of store.Store.
func (s *Store) Import(id string) (domain.Import, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	imp, ok := s.imports[id]
	return imp, ok
}

// Imports returns the number of import records
func (s *Store) Imports() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.imports)
}
