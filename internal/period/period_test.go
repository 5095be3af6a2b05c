package period

import (
	"testing"
	"time"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
)

func TestReferenceMonth(t *testing.T) {
	tests := []struct {
		name       string
		date       time.Time
		closingDay *int
		expected   time.Time
	}{
		{name: "no closing day", date: domain.NewDate(2024, time.March, 25), closingDay: nil, expected: domain.NewDate(2024, time.March, 1)},
		{name: "on closing day", date: domain.NewDate(2024, time.March, 10), closingDay: domain.IntPtr(10), expected: domain.NewDate(2024, time.March, 1)},
		{name: "after closing day", date: domain.NewDate(2024, time.March, 11), closingDay: domain.IntPtr(10), expected: domain.NewDate(2024, time.April, 1)},
		{name: "december rollover", date: domain.NewDate(2024, time.December, 11), closingDay: domain.IntPtr(10), expected: domain.NewDate(2025, time.January, 1)},
		{name: "first of month", date: domain.NewDate(2024, time.March, 1), closingDay: domain.IntPtr(1), expected: domain.NewDate(2024, time.March, 1)},
		{name: "closing day 31 in february", date: domain.NewDate(2024, time.February, 29), closingDay: domain.IntPtr(31), expected: domain.NewDate(2024, time.February, 1)},
		{name: "time of day ignored", date: time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC), closingDay: domain.IntPtr(10), expected: domain.NewDate(2024, time.March, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReferenceMonth(tt.date, tt.closingDay)
			if !got.Equal(tt.expected) {
				t.Errorf("ReferenceMonth() = %s, want %s", domain.FormatDate(got), domain.FormatDate(tt.expected))
			}
			if got.Day() != 1 {
				t.Errorf("ReferenceMonth() day = %d, want 1", got.Day())
			}
		})
	}
}

func TestClosingDate(t *testing.T) {
	tests := []struct {
		name       string
		ref        time.Time
		closingDay int
		expected   string
	}{
		{name: "regular", ref: domain.NewDate(2024, time.March, 1), closingDay: 10, expected: "2024-03-10"},
		{name: "clamped february leap", ref: domain.NewDate(2024, time.February, 1), closingDay: 31, expected: "2024-02-29"},
		{name: "clamped april", ref: domain.NewDate(2024, time.April, 1), closingDay: 31, expected: "2024-04-30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.FormatDate(ClosingDate(tt.ref, tt.closingDay)); got != tt.expected {
				t.Errorf("ClosingDate() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestDueDate(t *testing.T) {
	ref := domain.NewDate(2024, time.December, 1)

	tests := []struct {
		name       string
		closingDay *int
		dueDay     int
		expected   string
	}{
		{name: "due after closing", closingDay: domain.IntPtr(3), dueDay: 10, expected: "2024-12-10"},
		{name: "due before closing rolls over year", closingDay: domain.IntPtr(25), dueDay: 5, expected: "2025-01-05"},
		{name: "due equals closing", closingDay: domain.IntPtr(10), dueDay: 10, expected: "2025-01-10"},
		{name: "no closing day", closingDay: nil, dueDay: 15, expected: "2024-12-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.FormatDate(DueDate(ref, tt.closingDay, tt.dueDay)); got != tt.expected {
				t.Errorf("DueDate() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestStatementDates(t *testing.T) {
	ref := domain.NewDate(2024, time.March, 1)

	closing, due := StatementDates(ref, &domain.CreditCard{ClosingDay: domain.IntPtr(10), DueDay: domain.IntPtr(17)})
	if closing == nil || domain.FormatDate(*closing) != "2024-03-10" {
		t.Errorf("closing = %v, want 2024-03-10", closing)
	}
	if due == nil || domain.FormatDate(*due) != "2024-03-17" {
		t.Errorf("due = %v, want 2024-03-17", due)
	}

	closing, due = StatementDates(ref, &domain.CreditCard{})
	if closing != nil || due != nil {
		t.Errorf("expected no dates for a card without days, got %v %v", closing, due)
	}
}

func TestStatementID(t *testing.T) {
	got := StatementID(domain.NewDate(2025, time.January, 1), "card-nubank")
	if got != "stmt-2025-01-card-nubank" {
		t.Errorf("StatementID() = %q", got)
	}
	if MonthKey(domain.NewDate(2025, time.January, 1)) != "2025-01" {
		t.Errorf("MonthKey() = %q", MonthKey(domain.NewDate(2025, time.January, 1)))
	}
}
