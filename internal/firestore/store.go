package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/store"
)

// Store implements store.Store on Firestore.
//
// Uniqueness is enforced with claim documents created in the same transaction
// as the row they guard: card-statement-keys for (card, month) and
// card-fingerprints for (user, card, fingerprint). A claim that already exists
// fails the commit with AlreadyExists.
type Store struct {
	client *firestore.Client
}

var _ store.Store = (*Store)(nil)

// NewStore creates a Firestore-backed store
func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) collection(base string) *firestore.CollectionRef {
	return s.client.Collection(collectionName(base))
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

// SaveCard creates or replaces a card. Cards owned by another user are not overwritten.
func (s *Store) SaveCard(ctx context.Context, card *domain.CreditCard) error {
	if err := card.Validate(); err != nil {
		return fmt.Errorf("invalid card: %w", err)
	}
	ref := s.collection(cardsCollectionBase).Doc(card.ID)

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to get card %s: %w", card.ID, err)
		}
		if err == nil {
			var existing cardDoc
			if err := snap.DataTo(&existing); err != nil {
				return fmt.Errorf("failed to parse card: %w", err)
			}
			if existing.UserID != card.UserID {
				return fmt.Errorf("card %s: %w", card.ID, store.ErrForbidden)
			}
		}
		return tx.Set(ref, toCardDoc(card))
	})
}

// GetCard returns the user's card
func (s *Store) GetCard(ctx context.Context, userID, cardID string) (*domain.CreditCard, error) {
	snap, err := s.collection(cardsCollectionBase).Doc(cardID).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("card %s: %w", cardID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %s: %w", cardID, err)
	}

	var doc cardDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse card: %w", err)
	}
	if doc.UserID != userID {
		return nil, fmt.Errorf("card %s: %w", cardID, store.ErrForbidden)
	}
	return doc.toDomain()
}

// FindStatement resolves the (card, month) claim to its statement
func (s *Store) FindStatement(ctx context.Context, userID, cardID string, referenceMonth time.Time) (*domain.Statement, error) {
	snap, err := s.collection(statementKeysCollectionBase).Doc(statementKeyID(cardID, referenceMonth)).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("statement for card %s month %s: %w", cardID, referenceMonth.Format("2006-01"), store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find statement: %w", err)
	}

	var key statementKeyDoc
	if err := snap.DataTo(&key); err != nil {
		return nil, fmt.Errorf("failed to parse statement key: %w", err)
	}
	return s.GetStatement(ctx, userID, key.StatementID)
}

// CreateStatement writes the statement and its (card, month) claim atomically
func (s *Store) CreateStatement(ctx context.Context, stmt *domain.Statement) error {
	if err := stmt.Validate(); err != nil {
		return fmt.Errorf("invalid statement: %w", err)
	}
	keyRef := s.collection(statementKeysCollectionBase).Doc(statementKeyID(stmt.CreditCardID, stmt.ReferenceMonth))
	stmtRef := s.collection(statementsCollectionBase).Doc(stmt.ID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(keyRef, statementKeyDoc{StatementID: stmt.ID, UserID: stmt.UserID}); err != nil {
			return err
		}
		return tx.Create(stmtRef, toStatementDoc(stmt))
	})
	if isAlreadyExists(err) {
		return fmt.Errorf("statement %s: %w", stmt.ID, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create statement %s: %w", stmt.ID, err)
	}
	return nil
}

// GetStatement returns a statement owned by the user
func (s *Store) GetStatement(ctx context.Context, userID, statementID string) (*domain.Statement, error) {
	snap, err := s.collection(statementsCollectionBase).Doc(statementID).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("statement %s: %w", statementID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statement %s: %w", statementID, err)
	}

	var doc statementDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse statement: %w", err)
	}
	if doc.UserID != userID {
		return nil, fmt.Errorf("statement %s: %w", statementID, store.ErrForbidden)
	}
	return doc.toDomain()
}

// ListStatements returns the card's statements ordered by reference month
func (s *Store) ListStatements(ctx context.Context, userID, cardID string) ([]*domain.Statement, error) {
	iter := s.collection(statementsCollectionBase).
		Where("userId", "==", userID).
		Where("creditCardId", "==", cardID).
		Documents(ctx)
	defer iter.Stop()

	var statements []*domain.Statement
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate statements for card %s: %w", cardID, err)
		}

		var doc statementDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse statement: %w", err)
		}
		stmt, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}

	sort.Slice(statements, func(i, j int) bool {
		return statements[i].ReferenceMonth.Before(statements[j].ReferenceMonth)
	})
	return statements, nil
}

// UpdateStatementTotal writes the derived total
func (s *Store) UpdateStatementTotal(ctx context.Context, statementID string, total decimal.Decimal) error {
	_, err := s.collection(statementsCollectionBase).Doc(statementID).Update(ctx, []firestore.Update{
		{Path: "totalAmount", Value: total.String()},
	})
	if isNotFound(err) {
		return fmt.Errorf("statement %s: %w", statementID, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update total of statement %s: %w", statementID, err)
	}
	return nil
}

// DeleteEmptyStatement removes a statement and its (card, month) claim when no
// transaction references it
func (s *Store) DeleteEmptyStatement(ctx context.Context, statementID string) error {
	stmtRef := s.collection(statementsCollectionBase).Doc(statementID)
	linked := s.collection(transactionsCollectionBase).Where("statementId", "==", statementID).Limit(1)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(stmtRef)
		if isNotFound(err) {
			return fmt.Errorf("statement %s: %w", statementID, store.ErrNotFound)
		}
		if err != nil {
			return err
		}
		var doc statementDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("failed to parse statement: %w", err)
		}
		stmt, err := doc.toDomain()
		if err != nil {
			return err
		}

		txns, err := tx.Documents(linked).GetAll()
		if err != nil {
			return err
		}
		if len(txns) > 0 {
			return fmt.Errorf("statement %s has transactions: %w", statementID, store.ErrConflict)
		}
		if err := tx.Delete(s.collection(statementKeysCollectionBase).Doc(statementKeyID(stmt.CreditCardID, stmt.ReferenceMonth))); err != nil {
			return err
		}
		return tx.Delete(stmtRef)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
			return err
		}
		return fmt.Errorf("failed to delete statement %s: %w", statementID, err)
	}
	return nil
}

func (s *Store) fingerprintRef(txn *domain.Transaction) *firestore.DocumentRef {
	return s.collection(fingerprintsCollectionBase).Doc(fingerprintID(txn.UserID, txn.CreditCardID, txn.Fingerprint))
}

func claimFor(txn *domain.Transaction) fingerprintDoc {
	return fingerprintDoc{TransactionID: txn.ID, UserID: txn.UserID, CreditCardID: txn.CreditCardID}
}

// InsertTransaction writes the transaction with its fingerprint claim
func (s *Store) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	txnRef := s.collection(transactionsCollectionBase).Doc(txn.ID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(s.fingerprintRef(txn), claimFor(txn)); err != nil {
			return err
		}
		return tx.Create(txnRef, toTransactionDoc(txn))
	})
	if isAlreadyExists(err) {
		return fmt.Errorf("transaction %s: %w", txn.ID, store.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}
	return nil
}

// ListTransactionsByStatement returns the statement's transactions ordered by date
func (s *Store) ListTransactionsByStatement(ctx context.Context, statementID string) ([]*domain.Transaction, error) {
	iter := s.collection(transactionsCollectionBase).
		Where("statementId", "==", statementID).
		Documents(ctx)
	defer iter.Stop()

	var transactions []*domain.Transaction
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate transactions for statement %s: %w", statementID, err)
		}

		var doc transactionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse transaction: %w", err)
		}
		txn, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}

	sort.Slice(transactions, func(i, j int) bool {
		if !transactions[i].Date.Equal(transactions[j].Date) {
			return transactions[i].Date.Before(transactions[j].Date)
		}
		return transactions[i].ID < transactions[j].ID
	})
	return transactions, nil
}

func getTransaction(tx *firestore.Transaction, ref *firestore.DocumentRef, userID string) (*domain.Transaction, error) {
	snap, err := tx.Get(ref)
	if isNotFound(err) {
		return nil, fmt.Errorf("transaction %s: %w", ref.ID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", ref.ID, err)
	}

	var doc transactionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	if doc.UserID != userID {
		return nil, fmt.Errorf("transaction %s: %w", ref.ID, store.ErrForbidden)
	}
	return doc.toDomain()
}

// GetTransaction returns a transaction owned by the user
func (s *Store) GetTransaction(ctx context.Context, userID, transactionID string) (*domain.Transaction, error) {
	var txn *domain.Transaction
	ref := s.collection(transactionsCollectionBase).Doc(transactionID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var err error
		txn, err = getTransaction(tx, ref, userID)
		return err
	}, firestore.ReadOnly)
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// UpdateTransaction replaces a transaction, moving its fingerprint claim when the fingerprint changed
func (s *Store) UpdateTransaction(ctx context.Context, txn *domain.Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	txnRef := s.collection(transactionsCollectionBase).Doc(txn.ID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		old, err := getTransaction(tx, txnRef, txn.UserID)
		if err != nil {
			return err
		}
		if old.Fingerprint != txn.Fingerprint {
			if err := tx.Create(s.fingerprintRef(txn), claimFor(txn)); err != nil {
				return err
			}
			if err := tx.Delete(s.fingerprintRef(old)); err != nil {
				return err
			}
		}
		return tx.Set(txnRef, toTransactionDoc(txn))
	})
	if isAlreadyExists(err) {
		return fmt.Errorf("transaction %s: %w", txn.ID, store.ErrDuplicate)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrForbidden) {
			return err
		}
		return fmt.Errorf("failed to update transaction %s: %w", txn.ID, err)
	}
	return nil
}

// DeleteTransaction removes a transaction and releases its fingerprint claim
func (s *Store) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	txnRef := s.collection(transactionsCollectionBase).Doc(transactionID)

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		old, err := getTransaction(tx, txnRef, userID)
		if err != nil {
			return err
		}
		if err := tx.Delete(s.fingerprintRef(old)); err != nil {
			return err
		}
		return tx.Delete(txnRef)
	})
}

// CreateImport creates an import audit record
func (s *Store) CreateImport(ctx context.Context, imp *domain.Import) error {
	if imp.ID == "" {
		return fmt.Errorf("import ID is required")
	}
	_, err := s.collection(importsCollectionBase).Doc(imp.ID).Create(ctx, toImportDoc(imp))
	if err != nil {
		return fmt.Errorf("failed to create import %s: %w", imp.ID, err)
	}
	return nil
}

// UpdateImport replaces an import audit record
func (s *Store) UpdateImport(ctx context.Context, imp *domain.Import) error {
	if imp.ID == "" {
		return fmt.Errorf("import ID is required")
	}
	_, err := s.collection(importsCollectionBase).Doc(imp.ID).Set(ctx, toImportDoc(imp))
	if err != nil {
		return fmt.Errorf("failed to update import %s: %w", imp.ID, err)
	}
	return nil
}

// ListImports returns the user's most recent import records, newest first
func (s *Store) ListImports(ctx context.Context, userID string, limit int) ([]*domain.Import, error) {
	q := s.collection(importsCollectionBase).
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var imports []*domain.Import
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate imports for user %s: %w", userID, err)
		}

		var doc importDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse import: %w", err)
		}
		imports = append(imports, doc.toDomain())
	}
	return imports, nil
}
