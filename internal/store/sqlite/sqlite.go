// Package sqlite is a store.Store backed by a local SQLite file.
//
// Fingerprint and statement-month uniqueness are UNIQUE constraints, so two
// concurrent importers cannot both insert the same row.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS credit_cards (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	card_limit  TEXT NOT NULL DEFAULT '0',
	closing_day INTEGER,
	due_day     INTEGER
);

CREATE TABLE IF NOT EXISTS statements (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	credit_card_id  TEXT NOT NULL REFERENCES credit_cards(id),
	reference_month TEXT NOT NULL,
	closing_date    TEXT,
	due_date        TEXT,
	total_amount    TEXT NOT NULL DEFAULT '0',
	status          TEXT NOT NULL,
	UNIQUE (credit_card_id, reference_month)
);

CREATE TABLE IF NOT EXISTS transactions (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	credit_card_id TEXT NOT NULL REFERENCES credit_cards(id),
	statement_id   TEXT NOT NULL REFERENCES statements(id),
	date           TEXT NOT NULL,
	amount         TEXT NOT NULL,
	description    TEXT NOT NULL,
	category       TEXT NOT NULL DEFAULT '',
	external_id    TEXT NOT NULL DEFAULT '',
	import_id      TEXT NOT NULL DEFAULT '',
	fingerprint    TEXT NOT NULL,
	UNIQUE (user_id, credit_card_id, fingerprint)
);

CREATE INDEX IF NOT EXISTS idx_transactions_statement ON transactions(statement_id, date);

CREATE TABLE IF NOT EXISTS imports (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	credit_card_id    TEXT NOT NULL,
	file_name         TEXT NOT NULL,
	file_hash         TEXT NOT NULL,
	file_type         TEXT NOT NULL,
	status            TEXT NOT NULL,
	total_records     INTEGER NOT NULL DEFAULT 0,
	imported_records  INTEGER NOT NULL DEFAULT 0,
	duplicate_records INTEGER NOT NULL DEFAULT 0,
	created_at        TEXT NOT NULL,
	completed_at      TEXT
);
`

// Store implements store.Store on a SQLite database
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer connection keeps SQLITE_BUSY out of concurrent imports
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// Primary code only when extended result codes are off
		return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return domain.IntPtr(int(v.Int64))
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: domain.FormatDate(*t), Valid: true}
}

func datePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := domain.ParseDate(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveCard inserts a card or updates it when it already belongs to the same user
func (s *Store) SaveCard(ctx context.Context, card *domain.CreditCard) error {
	if err := card.Validate(); err != nil {
		return fmt.Errorf("invalid card: %w", err)
	}
	const q = `
		INSERT INTO credit_cards (id, user_id, name, card_limit, closing_day, due_day)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			card_limit = excluded.card_limit,
			closing_day = excluded.closing_day,
			due_day = excluded.due_day
		WHERE credit_cards.user_id = excluded.user_id`
	res, err := s.db.ExecContext(ctx, q, card.ID, card.UserID, card.Name, card.Limit.String(),
		nullInt(card.ClosingDay), nullInt(card.DueDay))
	if err != nil {
		return fmt.Errorf("failed to save card %s: %w", card.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("card %s: %w", card.ID, store.ErrForbidden)
	}
	return nil
}

// GetCard returns the user's card
func (s *Store) GetCard(ctx context.Context, userID, cardID string) (*domain.CreditCard, error) {
	const q = `SELECT id, user_id, name, card_limit, closing_day, due_day FROM credit_cards WHERE id = ?`
	var (
		card       domain.CreditCard
		limit      string
		closingDay sql.NullInt64
		dueDay     sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, q, cardID).Scan(&card.ID, &card.UserID, &card.Name, &limit, &closingDay, &dueDay)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("card %s: %w", cardID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %s: %w", cardID, err)
	}
	if card.UserID != userID {
		return nil, fmt.Errorf("card %s: %w", cardID, store.ErrForbidden)
	}
	if card.Limit, err = decimal.NewFromString(limit); err != nil {
		return nil, fmt.Errorf("invalid limit on card %s: %w", cardID, err)
	}
	card.ClosingDay = intPtr(closingDay)
	card.DueDay = intPtr(dueDay)
	return &card, nil
}

const statementColumns = `id, user_id, credit_card_id, reference_month, closing_date, due_date, total_amount, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatement(row rowScanner) (*domain.Statement, error) {
	var (
		stmt         domain.Statement
		ref, total   string
		closing, due sql.NullString
		status       string
	)
	if err := row.Scan(&stmt.ID, &stmt.UserID, &stmt.CreditCardID, &ref, &closing, &due, &total, &status); err != nil {
		return nil, err
	}

	var err error
	if stmt.ReferenceMonth, err = domain.ParseDate(ref); err != nil {
		return nil, err
	}
	if stmt.ClosingDate, err = datePtr(closing); err != nil {
		return nil, err
	}
	if stmt.DueDate, err = datePtr(due); err != nil {
		return nil, err
	}
	if stmt.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	stmt.Status = domain.StatementStatus(status)
	return &stmt, nil
}

// FindStatement looks up the statement of a card month
func (s *Store) FindStatement(ctx context.Context, userID, cardID string, referenceMonth time.Time) (*domain.Statement, error) {
	q := `SELECT ` + statementColumns + ` FROM statements WHERE credit_card_id = ? AND reference_month = ?`
	stmt, err := scanStatement(s.db.QueryRowContext(ctx, q, cardID, domain.FormatDate(referenceMonth)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("statement for card %s month %s: %w", cardID, referenceMonth.Format("2006-01"), store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find statement: %w", err)
	}
	if stmt.UserID != userID {
		return nil, fmt.Errorf("statement %s: %w", stmt.ID, store.ErrForbidden)
	}
	return stmt, nil
}

// CreateStatement inserts a statement. The UNIQUE constraint on
// (credit_card_id, reference_month) surfaces as store.ErrConflict.
func (s *Store) CreateStatement(ctx context.Context, stmt *domain.Statement) error {
	if err := stmt.Validate(); err != nil {
		return fmt.Errorf("invalid statement: %w", err)
	}
	const q = `
		INSERT INTO statements (id, user_id, credit_card_id, reference_month, closing_date, due_date, total_amount, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, stmt.ID, stmt.UserID, stmt.CreditCardID, domain.FormatDate(stmt.ReferenceMonth),
		nullDate(stmt.ClosingDate), nullDate(stmt.DueDate), stmt.TotalAmount.String(), string(stmt.Status))
	if isUniqueViolation(err) {
		return fmt.Errorf("statement %s: %w", stmt.ID, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create statement %s: %w", stmt.ID, err)
	}
	return nil
}

// GetStatement returns a statement owned by the user
func (s *Store) GetStatement(ctx context.Context, userID, statementID string) (*domain.Statement, error) {
	q := `SELECT ` + statementColumns + ` FROM statements WHERE id = ?`
	stmt, err := scanStatement(s.db.QueryRowContext(ctx, q, statementID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("statement %s: %w", statementID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statement %s: %w", statementID, err)
	}
	if stmt.UserID != userID {
		return nil, fmt.Errorf("statement %s: %w", statementID, store.ErrForbidden)
	}
	return stmt, nil
}

// ListStatements returns the card's statements ordered by reference month
func (s *Store) ListStatements(ctx context.Context, userID, cardID string) ([]*domain.Statement, error) {
	q := `SELECT ` + statementColumns + ` FROM statements WHERE user_id = ? AND credit_card_id = ? ORDER BY reference_month`
	rows, err := s.db.QueryContext(ctx, q, userID, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list statements: %w", err)
	}
	defer rows.Close()

	var result []*domain.Statement
	for rows.Next() {
		stmt, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan statement: %w", err)
		}
		result = append(result, stmt)
	}
	return result, rows.Err()
}

// UpdateStatementTotal writes the derived total
func (s *Store) UpdateStatementTotal(ctx context.Context, statementID string, total decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx, `UPDATE statements SET total_amount = ? WHERE id = ?`, total.String(), statementID)
	if err != nil {
		return fmt.Errorf("failed to update total of statement %s: %w", statementID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("statement %s: %w", statementID, store.ErrNotFound)
	}
	return nil
}

// DeleteEmptyStatement removes a statement that no transaction references
func (s *Store) DeleteEmptyStatement(ctx context.Context, statementID string) error {
	const q = `DELETE FROM statements WHERE id = ? AND NOT EXISTS (SELECT 1 FROM transactions WHERE statement_id = ?)`
	res, err := s.db.ExecContext(ctx, q, statementID, statementID)
	if err != nil {
		return fmt.Errorf("failed to delete statement %s: %w", statementID, err)
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM statements WHERE id = ?`, statementID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up statement %s: %w", statementID, err)
	}
	if exists == 0 {
		return fmt.Errorf("statement %s: %w", statementID, store.ErrNotFound)
	}
	return fmt.Errorf("statement %s has transactions: %w", statementID, store.ErrConflict)
}

const transactionColumns = `id, user_id, credit_card_id, statement_id, date, amount, description, category, external_id, import_id, fingerprint`

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		txn          domain.Transaction
		date, amount string
	)
	err := row.Scan(&txn.ID, &txn.UserID, &txn.CreditCardID, &txn.StatementID, &date, &amount,
		&txn.Description, &txn.Category, &txn.ExternalID, &txn.ImportID, &txn.Fingerprint)
	if err != nil {
		return nil, err
	}
	if txn.Date, err = domain.ParseDate(date); err != nil {
		return nil, err
	}
	if txn.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &txn, nil
}

// InsertTransaction inserts a transaction. A fingerprint collision surfaces as store.ErrDuplicate.
func (s *Store) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	q := `INSERT INTO transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, txn.ID, txn.UserID, txn.CreditCardID, txn.StatementID,
		domain.FormatDate(txn.Date), txn.Amount.String(), txn.Description, txn.Category,
		txn.ExternalID, txn.ImportID, txn.Fingerprint)
	if isUniqueViolation(err) {
		return fmt.Errorf("transaction %s: %w", txn.ID, store.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}
	return nil
}

// ListTransactionsByStatement returns the statement's transactions ordered by date
func (s *Store) ListTransactionsByStatement(ctx context.Context, statementID string) ([]*domain.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE statement_id = ? ORDER BY date, id`
	rows, err := s.db.QueryContext(ctx, q, statementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		result = append(result, txn)
	}
	return result, rows.Err()
}

// GetTransaction returns a transaction owned by the user
func (s *Store) GetTransaction(ctx context.Context, userID, transactionID string) (*domain.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`
	txn, err := scanTransaction(s.db.QueryRowContext(ctx, q, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", transactionID, err)
	}
	if txn.UserID != userID {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, store.ErrForbidden)
	}
	return txn, nil
}

// UpdateTransaction replaces the mutable columns of a transaction
func (s *Store) UpdateTransaction(ctx context.Context, txn *domain.Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	const q = `
		UPDATE transactions
		SET statement_id = ?, date = ?, amount = ?, description = ?, category = ?, fingerprint = ?
		WHERE id = ? AND user_id = ?`
	res, err := s.db.ExecContext(ctx, q, txn.StatementID, domain.FormatDate(txn.Date), txn.Amount.String(),
		txn.Description, txn.Category, txn.Fingerprint, txn.ID, txn.UserID)
	if isUniqueViolation(err) {
		return fmt.Errorf("transaction %s: %w", txn.ID, store.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", txn.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("transaction %s: %w", txn.ID, store.ErrNotFound)
	}
	return nil
}

// DeleteTransaction removes a transaction owned by the user
func (s *Store) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	if _, err := s.GetTransaction(ctx, userID, transactionID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, transactionID); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", transactionID, err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

// CreateImport inserts an import audit record
func (s *Store) CreateImport(ctx context.Context, imp *domain.Import) error {
	const q = `
		INSERT INTO imports (id, user_id, credit_card_id, file_name, file_hash, file_type, status,
			total_records, imported_records, duplicate_records, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, imp.ID, imp.UserID, imp.CreditCardID, imp.FileName, imp.FileHash,
		string(imp.FileType), string(imp.Status), imp.TotalRecords, imp.ImportedRecords, imp.DuplicateRecords,
		imp.CreatedAt.UTC().Format(time.RFC3339Nano), nullTime(imp.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to create import %s: %w", imp.ID, err)
	}
	return nil
}

// UpdateImport writes the final status and counters of an import
func (s *Store) UpdateImport(ctx context.Context, imp *domain.Import) error {
	const q = `
		UPDATE imports
		SET status = ?, total_records = ?, imported_records = ?, duplicate_records = ?, completed_at = ?
		WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, string(imp.Status), imp.TotalRecords, imp.ImportedRecords,
		imp.DuplicateRecords, nullTime(imp.CompletedAt), imp.ID)
	if err != nil {
		return fmt.Errorf("failed to update import %s: %w", imp.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("import %s: %w", imp.ID, store.ErrNotFound)
	}
	return nil
}

const importColumns = `id, user_id, credit_card_id, file_name, file_hash, file_type, status,
	total_records, imported_records, duplicate_records, created_at, completed_at`

func scanImport(row rowScanner) (*domain.Import, error) {
	var (
		imp                         domain.Import
		fileType, status, createdAt string
		completedAt                 sql.NullString
	)
	err := row.Scan(&imp.ID, &imp.UserID, &imp.CreditCardID, &imp.FileName,
		&imp.FileHash, &fileType, &status, &imp.TotalRecords, &imp.ImportedRecords, &imp.DuplicateRecords,
		&createdAt, &completedAt)
	if err != nil {
		return nil, err
	}
	imp.FileType = domain.FileType(fileType)
	imp.Status = domain.ImportStatus(status)
	if imp.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at on import %s: %w", imp.ID, err)
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid completed_at on import %s: %w", imp.ID, err)
		}
		imp.CompletedAt = &t
	}
	return &imp, nil
}

// GetImport returns an import audit record
func (s *Store) GetImport(ctx context.Context, importID string) (*domain.Import, error) {
	imp, err := scanImport(s.db.QueryRowContext(ctx, `SELECT `+importColumns+` FROM imports WHERE id = ?`, importID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("import %s: %w", importID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import %s: %w", importID, err)
	}
	return imp, nil
}

// ListImports returns the user's most recent import records, newest first.
// created_at is RFC 3339 with a variable fraction, so it is ordered through julianday.
func (s *Store) ListImports(ctx context.Context, userID string, limit int) ([]*domain.Import, error) {
	if limit <= 0 {
		limit = -1
	}
	q := `SELECT ` + importColumns + ` FROM imports WHERE user_id = ?
		ORDER BY julianday(created_at) DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	defer rows.Close()

	var result []*domain.Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import: %w", err)
		}
		result = append(result, imp)
	}
	return result, rows.Err()
}
