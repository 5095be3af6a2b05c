package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar date format (ISO, no time component)
const DateLayout = "2006-01-02"

// StatementStatus represents the billing state of a statement
type StatementStatus string

const (
	StatementStatusOpen   StatementStatus = "open"
	StatementStatusClosed StatementStatus = "closed"
	StatementStatusPaid   StatementStatus = "paid"
)

// ImportStatus represents the state of an import audit record
type ImportStatus string

const (
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
)

// FileType identifies the statement file format
type FileType string

const (
	FileTypeCSV FileType = "csv"
	FileTypeOFX FileType = "ofx"
)

// Category is a spending category assigned by the rules engine
type Category string

const (
	CategoryGroceries     Category = "groceries"
	CategoryDining        Category = "dining"
	CategoryTransport     Category = "transport"
	CategoryFuel          Category = "fuel"
	CategoryHealth        Category = "health"
	CategoryShopping      Category = "shopping"
	CategorySubscriptions Category = "subscriptions"
	CategoryTravel        Category = "travel"
	CategoryUtilities     Category = "utilities"
	CategoryEducation     Category = "education"
	CategoryEntertainment Category = "entertainment"
	CategoryFees          Category = "fees"
	CategoryOther         Category = "other"
)

var validCategories = map[Category]struct{}{
	CategoryGroceries: {}, CategoryDining: {}, CategoryTransport: {}, CategoryFuel: {},
	CategoryHealth: {}, CategoryShopping: {}, CategorySubscriptions: {}, CategoryTravel: {},
	CategoryUtilities: {}, CategoryEducation: {}, CategoryEntertainment: {}, CategoryFees: {},
	CategoryOther: {},
}

// ValidateCategory reports whether c is a known category
func ValidateCategory(c Category) bool {
	_, ok := validCategories[c]
	return ok
}

var validStatementStatuses = map[StatementStatus]struct{}{
	StatementStatusOpen: {}, StatementStatusClosed: {}, StatementStatusPaid: {},
}

// ParsedTransaction is the normalized output of a format parser.
// Amount is always the absolute value of the source amount.
type ParsedTransaction struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	ExternalID  string          `json:"externalId,omitempty"`
	Category    string          `json:"category,omitempty"`
}

// Validate checks the parsed transaction invariants
func (p ParsedTransaction) Validate() error {
	if p.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if strings.TrimSpace(p.Description) == "" {
		return fmt.Errorf("description cannot be blank")
	}
	if !p.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", p.Amount)
	}
	return nil
}

// NoColumn marks an optional ColumnMapping column as absent
const NoColumn = -1

// ColumnMapping tells the CSV parser which column holds each field.
// Category is optional and set to NoColumn when absent.
type ColumnMapping struct {
	Date        int `json:"date"`
	Description int `json:"description"`
	Amount      int `json:"amount"`
	Category    int `json:"category"`
}

// Validate checks that all indexes are non-negative and distinct
func (m ColumnMapping) Validate() error {
	if m.Date < 0 || m.Description < 0 || m.Amount < 0 {
		return fmt.Errorf("column indexes must be >= 0 (date=%d, description=%d, amount=%d)", m.Date, m.Description, m.Amount)
	}
	if m.Date == m.Description || m.Date == m.Amount || m.Description == m.Amount {
		return fmt.Errorf("column indexes must be distinct (date=%d, description=%d, amount=%d)", m.Date, m.Description, m.Amount)
	}
	if m.Category != NoColumn {
		if m.Category < 0 {
			return fmt.Errorf("category column must be >= 0, got %d", m.Category)
		}
		if m.Category == m.Date || m.Category == m.Description || m.Category == m.Amount {
			return fmt.Errorf("category column %d collides with another mapped column", m.Category)
		}
	}
	return nil
}

// ParseColumnMapping parses "date,description,amount[,category]" column indexes.
// An empty value returns nil, meaning the mapping is inferred from the header.
func ParseColumnMapping(raw string) (*ColumnMapping, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return nil, fmt.Errorf("mapping must be date,description,amount[,category], got %q", raw)
	}
	indexes := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("mapping index %q is not a number", p)
		}
		indexes[i] = n
	}

	m := &ColumnMapping{Date: indexes[0], Description: indexes[1], Amount: indexes[2], Category: NoColumn}
	if len(indexes) == 4 {
		m.Category = indexes[3]
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mapping: %w", err)
	}
	return m, nil
}

// MaxIndex returns the highest mapped column index
func (m ColumnMapping) MaxIndex() int {
	return max(m.Date, m.Description, m.Amount, m.Category)
}

// CreditCard is a user's card. ClosingDay and DueDay are nil when unknown.
type CreditCard struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Name       string          `json:"name"`
	Limit      decimal.Decimal `json:"limit"`
	ClosingDay *int            `json:"closingDay,omitempty"`
	DueDay     *int            `json:"dueDay,omitempty"`
}

// Validate checks the card fields
func (c *CreditCard) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("card ID is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if c.ClosingDay != nil && (*c.ClosingDay < 1 || *c.ClosingDay > 31) {
		return fmt.Errorf("closing day must be in [1,31], got %d", *c.ClosingDay)
	}
	if c.DueDay != nil && (*c.DueDay < 1 || *c.DueDay > 31) {
		return fmt.Errorf("due day must be in [1,31], got %d", *c.DueDay)
	}
	return nil
}

// Statement is one billing period of one card.
// TotalAmount is derived from the statement's transactions and only written by recalculation.
type Statement struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	CreditCardID   string          `json:"creditCardId"`
	ReferenceMonth time.Time       `json:"referenceMonth"`
	ClosingDate    *time.Time      `json:"closingDate,omitempty"`
	DueDate        *time.Time      `json:"dueDate,omitempty"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	Status         StatementStatus `json:"status"`
}

// Validate checks the statement fields
func (s *Statement) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("statement ID is required")
	}
	if s.CreditCardID == "" {
		return fmt.Errorf("credit card ID is required")
	}
	if s.ReferenceMonth.IsZero() {
		return fmt.Errorf("reference month is required")
	}
	if s.ReferenceMonth.Day() != 1 {
		return fmt.Errorf("reference month must be the first day of a month, got %s", FormatDate(s.ReferenceMonth))
	}
	if _, ok := validStatementStatuses[s.Status]; !ok {
		return fmt.Errorf("invalid statement status: %s", s.Status)
	}
	return nil
}

// Transaction is a persisted credit card charge
type Transaction struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	CreditCardID string          `json:"creditCardId"`
	StatementID  string          `json:"statementId"`
	Date         time.Time       `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	ExternalID   string          `json:"externalId,omitempty"`
	ImportID     string          `json:"importId,omitempty"`
	Fingerprint  string          `json:"fingerprint"`
}

// Validate checks the transaction fields
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction ID is required")
	}
	if t.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if t.CreditCardID == "" || t.StatementID == "" {
		return fmt.Errorf("credit card ID and statement ID are required")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", t.Amount)
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("description cannot be blank")
	}
	if t.Fingerprint == "" {
		return fmt.Errorf("fingerprint is required")
	}
	return nil
}

// Import is the audit record of one statement file import
type Import struct {
	ID               string       `json:"id"`
	UserID           string       `json:"userId"`
	CreditCardID     string       `json:"creditCardId"`
	FileName         string       `json:"fileName"`
	FileHash         string       `json:"fileHash"`
	FileType         FileType     `json:"fileType"`
	Status           ImportStatus `json:"status"`
	TotalRecords     int          `json:"totalRecords"`
	ImportedRecords  int          `json:"importedRecords"`
	DuplicateRecords int          `json:"duplicateRecords"`
	CreatedAt        time.Time    `json:"createdAt"`
	CompletedAt      *time.Time   `json:"completedAt,omitempty"`
}

// ImportResult is returned to the caller of an import
type ImportResult struct {
	Success        bool   `json:"success"`
	ImportID       string `json:"importId"`
	ImportedCount  int    `json:"importedCount"`
	DuplicateCount int    `json:"duplicateCount"`
	SkippedCount   int    `json:"skippedCount"`
	TotalRecords   int    `json:"totalRecords"`
}

// NewDate returns the calendar date at UTC midnight
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TruncateToDate drops the time component, keeping the calendar date of t in its own location
func TruncateToDate(t time.Time) time.Time {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// FormatDate formats a date as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format (expected YYYY-MM-DD): %w", err)
	}
	return t, nil
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}
