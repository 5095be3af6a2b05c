package firestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/period"
)

// Amounts are stored as decimal strings and dates as YYYY-MM-DD so that
// totals stay exact and documents sort by date lexically.

type cardDoc struct {
	ID         string `firestore:"id"`
	UserID     string `firestore:"userId"`
	Name       string `firestore:"name"`
	Limit      string `firestore:"limit"`
	ClosingDay *int   `firestore:"closingDay"`
	DueDay     *int   `firestore:"dueDay"`
}

func toCardDoc(c *domain.CreditCard) cardDoc {
	return cardDoc{
		ID:         c.ID,
		UserID:     c.UserID,
		Name:       c.Name,
		Limit:      c.Limit.String(),
		ClosingDay: c.ClosingDay,
		DueDay:     c.DueDay,
	}
}

func (d cardDoc) toDomain() (*domain.CreditCard, error) {
	limit, err := parseAmount(d.Limit)
	if err != nil {
		return nil, fmt.Errorf("invalid limit on card %s: %w", d.ID, err)
	}
	return &domain.CreditCard{
		ID:         d.ID,
		UserID:     d.UserID,
		Name:       d.Name,
		Limit:      limit,
		ClosingDay: d.ClosingDay,
		DueDay:     d.DueDay,
	}, nil
}

type statementDoc struct {
	ID             string  `firestore:"id"`
	UserID         string  `firestore:"userId"`
	CreditCardID   string  `firestore:"creditCardId"`
	ReferenceMonth string  `firestore:"referenceMonth"`
	ClosingDate    *string `firestore:"closingDate"`
	DueDate        *string `firestore:"dueDate"`
	TotalAmount    string  `firestore:"totalAmount"`
	Status         string  `firestore:"status"`
}

func toStatementDoc(s *domain.Statement) statementDoc {
	return statementDoc{
		ID:             s.ID,
		UserID:         s.UserID,
		CreditCardID:   s.CreditCardID,
		ReferenceMonth: domain.FormatDate(s.ReferenceMonth),
		ClosingDate:    formatOptionalDate(s.ClosingDate),
		DueDate:        formatOptionalDate(s.DueDate),
		TotalAmount:    s.TotalAmount.String(),
		Status:         string(s.Status),
	}
}

func (d statementDoc) toDomain() (*domain.Statement, error) {
	ref, err := domain.ParseDate(d.ReferenceMonth)
	if err != nil {
		return nil, fmt.Errorf("invalid reference month on statement %s: %w", d.ID, err)
	}
	closing, err := parseOptionalDate(d.ClosingDate)
	if err != nil {
		return nil, fmt.Errorf("invalid closing date on statement %s: %w", d.ID, err)
	}
	due, err := parseOptionalDate(d.DueDate)
	if err != nil {
		return nil, fmt.Errorf("invalid due date on statement %s: %w", d.ID, err)
	}
	total, err := parseAmount(d.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid total on statement %s: %w", d.ID, err)
	}
	return &domain.Statement{
		ID:             d.ID,
		UserID:         d.UserID,
		CreditCardID:   d.CreditCardID,
		ReferenceMonth: ref,
		ClosingDate:    closing,
		DueDate:        due,
		TotalAmount:    total,
		Status:         domain.StatementStatus(d.Status),
	}, nil
}

// statementKeyDoc claims a (card, month) pair for one statement
type statementKeyDoc struct {
	StatementID string `firestore:"statementId"`
	UserID      string `firestore:"userId"`
}

func statementKeyID(cardID string, referenceMonth time.Time) string {
	return cardID + "_" + period.MonthKey(referenceMonth)
}

type transactionDoc struct {
	ID           string `firestore:"id"`
	UserID       string `firestore:"userId"`
	CreditCardID string `firestore:"creditCardId"`
	StatementID  string `firestore:"statementId"`
	Date         string `firestore:"date"`
	Amount       string `firestore:"amount"`
	Description  string `firestore:"description"`
	Category     string `firestore:"category"`
	ExternalID   string `firestore:"externalId,omitempty"`
	ImportID     string `firestore:"importId,omitempty"`
	Fingerprint  string `firestore:"fingerprint"`
}

func toTransactionDoc(t *domain.Transaction) transactionDoc {
	return transactionDoc{
		ID:           t.ID,
		UserID:       t.UserID,
		CreditCardID: t.CreditCardID,
		StatementID:  t.StatementID,
		Date:         domain.FormatDate(t.Date),
		Amount:       t.Amount.String(),
		Description:  t.Description,
		Category:     t.Category,
		ExternalID:   t.ExternalID,
		ImportID:     t.ImportID,
		Fingerprint:  t.Fingerprint,
	}
}

func (d transactionDoc) toDomain() (*domain.Transaction, error) {
	date, err := domain.ParseDate(d.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date on transaction %s: %w", d.ID, err)
	}
	amount, err := parseAmount(d.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount on transaction %s: %w", d.ID, err)
	}
	return &domain.Transaction{
		ID:           d.ID,
		UserID:       d.UserID,
		CreditCardID: d.CreditCardID,
		StatementID:  d.StatementID,
		Date:         date,
		Amount:       amount,
		Description:  d.Description,
		Category:     d.Category,
		ExternalID:   d.ExternalID,
		ImportID:     d.ImportID,
		Fingerprint:  d.Fingerprint,
	}, nil
}

// fingerprintDoc claims a fingerprint within a user's card
type fingerprintDoc struct {
	TransactionID string `firestore:"transactionId"`
	UserID        string `firestore:"userId"`
	CreditCardID  string `firestore:"creditCardId"`
}

// fingerprintID derives a path-safe document ID from the uniqueness scope
func fingerprintID(userID, cardID, fp string) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + cardID + "\x00" + fp))
	return hex.EncodeToString(sum[:])
}

type importDoc struct {
	ID               string     `firestore:"id"`
	UserID           string     `firestore:"userId"`
	CreditCardID     string     `firestore:"creditCardId"`
	FileName         string     `firestore:"fileName"`
	FileHash         string     `firestore:"fileHash"`
	FileType         string     `firestore:"fileType"`
	Status           string     `firestore:"status"`
	TotalRecords     int        `firestore:"totalRecords"`
	ImportedRecords  int        `firestore:"importedRecords"`
	DuplicateRecords int        `firestore:"duplicateRecords"`
	CreatedAt        time.Time  `firestore:"createdAt"`
	CompletedAt      *time.Time `firestore:"completedAt,omitempty"`
}

func toImportDoc(imp *domain.Import) importDoc {
	return importDoc{
		ID:               imp.ID,
		UserID:           imp.UserID,
		CreditCardID:     imp.CreditCardID,
		FileName:         imp.FileName,
		FileHash:         imp.FileHash,
		FileType:         string(imp.FileType),
		Status:           string(imp.Status),
		TotalRecords:     imp.TotalRecords,
		ImportedRecords:  imp.ImportedRecords,
		DuplicateRecords: imp.DuplicateRecords,
		CreatedAt:        imp.CreatedAt,
		CompletedAt:      imp.CompletedAt,
	}
}

func (d importDoc) toDomain() *domain.Import {
	return &domain.Import{
		ID:               d.ID,
		UserID:           d.UserID,
		CreditCardID:     d.CreditCardID,
		FileName:         d.FileName,
		FileHash:         d.FileHash,
		FileType:         domain.FileType(d.FileType),
		Status:           domain.ImportStatus(d.Status),
		TotalRecords:     d.TotalRecords,
		ImportedRecords:  d.ImportedRecords,
		DuplicateRecords: d.DuplicateRecords,
		CreatedAt:        d.CreatedAt,
		CompletedAt:      d.CompletedAt,
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func formatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := domain.FormatDate(*t)
	return &s
}

func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
