// Package period assigns transactions to monthly statements
package period

import (
	"fmt"
	"time"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
)

// ReferenceMonth returns the first day of the statement month a purchase belongs to.
// Without a closing day it is the purchase's own month. With one, purchases made
// after the closing day roll into the next month's statement.
// Example: closingDay 10 → 2024-03-10 is March, 2024-03-11 is April, 2024-12-11 is January 2025.
func ReferenceMonth(date time.Time, closingDay *int) time.Time {
	ref := domain.NewDate(date.Year(), date.Month(), 1)
	if closingDay != nil && date.Day() > *closingDay {
		ref = ref.AddDate(0, 1, 0)
	}
	return ref
}

// ClosingDate returns the closing date of the statement for ref, clamping the
// closing day to the month length
func ClosingDate(ref time.Time, closingDay int) time.Time {
	return clampedDate(ref.Year(), ref.Month(), closingDay)
}

// DueDate returns the payment due date of the statement for ref. The due date falls
// in the reference month when dueDay is after the closing day, otherwise in the
// following month.
func DueDate(ref time.Time, closingDay *int, dueDay int) time.Time {
	month := domain.NewDate(ref.Year(), ref.Month(), 1)
	if closingDay != nil && dueDay <= *closingDay {
		month = month.AddDate(0, 1, 0)
	}
	return clampedDate(month.Year(), month.Month(), dueDay)
}

// StatementDates derives the optional closing and due dates from the card
func StatementDates(ref time.Time, card *domain.CreditCard) (closing, due *time.Time) {
	if card == nil {
		return nil, nil
	}
	if card.ClosingDay != nil {
		c := ClosingDate(ref, *card.ClosingDay)
		closing = &c
	}
	if card.DueDay != nil {
		d := DueDate(ref, card.ClosingDay, *card.DueDay)
		due = &d
	}
	return closing, due
}

// StatementID creates a deterministic statement ID.
// Format: "stmt-YYYY-MM-{cardID}"
// Example: StatementID(2024-03-01, "card-nubank") → "stmt-2024-03-card-nubank"
func StatementID(ref time.Time, cardID string) string {
	return fmt.Sprintf("stmt-%04d-%02d-%s", ref.Year(), ref.Month(), cardID)
}

// MonthKey formats a reference month as YYYY-MM
func MonthKey(ref time.Time) string {
	return ref.Format("2006-01")
}

func clampedDate(year int, month time.Month, day int) time.Time {
	last := domain.NewDate(year, month+1, 0).Day()
	return domain.NewDate(year, month, min(max(day, 1), last))
}
