package domain

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParsedTransaction_Validate(t *testing.T) {
	valid := ParsedTransaction{
		Date:        NewDate(2024, time.March, 10),
		Description: "Supermercado",
		Amount:      decimal.RequireFromString("123.45"),
	}

	tests := []struct {
		name    string
		mutate  func(p *ParsedTransaction)
		wantErr bool
	}{
		{"valid", func(p *ParsedTransaction) {}, false},
		{"zero date", func(p *ParsedTransaction) { p.Date = time.Time{} }, true},
		{"blank description", func(p *ParsedTransaction) { p.Description = "   " }, true},
		{"zero amount", func(p *ParsedTransaction) { p.Amount = decimal.Zero }, true},
		{"negative amount", func(p *ParsedTransaction) { p.Amount = decimal.NewFromInt(-5) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestColumnMapping_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mapping ColumnMapping
		wantErr bool
	}{
		{"valid", ColumnMapping{Date: 0, Description: 1, Amount: 2, Category: NoColumn}, false},
		{"valid with category", ColumnMapping{Date: 0, Description: 1, Amount: 2, Category: 3}, false},
		{"negative index", ColumnMapping{Date: -1, Description: 1, Amount: 2, Category: NoColumn}, true},
		{"duplicate index", ColumnMapping{Date: 0, Description: 0, Amount: 2, Category: NoColumn}, true},
		{"category collides", ColumnMapping{Date: 0, Description: 1, Amount: 2, Category: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mapping.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseColumnMapping(t *testing.T) {
	tests := []struct {
		raw     string
		want    *ColumnMapping
		wantErr bool
	}{
		{"", nil, false},
		{"0,1,2", &ColumnMapping{Date: 0, Description: 1, Amount: 2, Category: NoColumn}, false},
		{" 3, 1 ,0,2", &ColumnMapping{Date: 3, Description: 1, Amount: 0, Category: 2}, false},
		{"0,1", nil, true},
		{"a,b,c", nil, true},
		{"0,1,1", nil, true},
		{"0,1,2,3,4", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseColumnMapping(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColumnMapping(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseColumnMapping(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestColumnMapping_MaxIndex(t *testing.T) {
	m := ColumnMapping{Date: 4, Description: 1, Amount: 2, Category: NoColumn}
	if got := m.MaxIndex(); got != 4 {
		t.Errorf("MaxIndex() = %d, want 4", got)
	}
	m.Category = 7
	if got := m.MaxIndex(); got != 7 {
		t.Errorf("MaxIndex() = %d, want 7", got)
	}
}

func TestCreditCard_Validate(t *testing.T) {
	card := &CreditCard{ID: "card-1", UserID: "user-1", ClosingDay: IntPtr(10), DueDay: IntPtr(17)}
	if err := card.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	card.ClosingDay = IntPtr(32)
	if err := card.Validate(); err == nil {
		t.Error("Validate() expected error for closing day 32")
	}

	card.ClosingDay = nil
	card.DueDay = IntPtr(0)
	if err := card.Validate(); err == nil {
		t.Error("Validate() expected error for due day 0")
	}
}

func TestStatement_Validate(t *testing.T) {
	stmt := &Statement{
		ID:             "stmt-1",
		CreditCardID:   "card-1",
		ReferenceMonth: NewDate(2024, time.March, 1),
		Status:         StatementStatusOpen,
	}
	if err := stmt.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	stmt.ReferenceMonth = NewDate(2024, time.March, 2)
	if err := stmt.Validate(); err == nil {
		t.Error("Validate() expected error for reference month not on day 1")
	}

	stmt.ReferenceMonth = NewDate(2024, time.March, 1)
	stmt.Status = "archived"
	if err := stmt.Validate(); err == nil {
		t.Error("Validate() expected error for unknown status")
	}
}

func TestTransaction_Validate(t *testing.T) {
	txn := &Transaction{
		ID:           "txn-1",
		UserID:       "user-1",
		CreditCardID: "card-1",
		StatementID:  "stmt-1",
		Date:         NewDate(2024, time.March, 10),
		Amount:       decimal.RequireFromString("10.00"),
		Description:  "Padaria",
		Fingerprint:  "abc",
	}
	if err := txn.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	txn.Fingerprint = ""
	if err := txn.Validate(); err == nil {
		t.Error("Validate() expected error for missing fingerprint")
	}
}

func TestDateHelpers(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	d := TruncateToDate(time.Date(2024, time.March, 10, 23, 30, 0, 0, loc))
	if got := FormatDate(d); got != "2024-03-10" {
		t.Errorf("FormatDate(TruncateToDate()) = %q, want 2024-03-10", got)
	}

	parsed, err := ParseDate("2024-12-31")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if !parsed.Equal(NewDate(2024, time.December, 31)) {
		t.Errorf("ParseDate() = %v", parsed)
	}

	if _, err := ParseDate("31/12/2024"); err == nil {
		t.Error("ParseDate() expected error for DD/MM/YYYY input")
	}
}

func TestValidateCategory(t *testing.T) {
	if !ValidateCategory(CategoryGroceries) {
		t.Error("ValidateCategory(groceries) = false")
	}
	if !ValidateCategory(CategoryOther) {
		t.Error("ValidateCategory(other) = false")
	}
	if ValidateCategory("invalid_category") {
		t.Error("ValidateCategory(invalid_category) = true")
	}
}
