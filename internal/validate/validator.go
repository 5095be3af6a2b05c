// Package validate reconciles stored statements against their live transactions
package validate

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/period"
)

// ValidationResult contains all reconciliation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// ValidationError represents a consistency violation
type ValidationError struct {
	Entity  string // "statement" or "transaction"
	ID      string
	Field   string
	Value   string
	Message string
}

// ValidationWarning represents a non-critical issue
type ValidationWarning struct {
	Entity  string
	ID      string
	Field   string
	Value   string
	Message string
}

// OK reports whether no errors were found
func (r *ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) addError(entity, id, field, value, message string) {
	r.Errors = append(r.Errors, ValidationError{Entity: entity, ID: id, Field: field, Value: value, Message: message})
}

// ValidateStatements checks that every statement total equals the sum of its
// transactions, that each card month has one statement, and that fingerprints
// are unique within a card. transactionsByStatement is keyed by statement ID.
func ValidateStatements(statements []*domain.Statement, transactionsByStatement map[string][]*domain.Transaction) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}

	statementIDs := make(map[string]*domain.Statement, len(statements))
	monthOwners := make(map[string]string)
	fingerprints := make(map[string]string)

	for _, stmt := range statements {
		if _, dup := statementIDs[stmt.ID]; dup {
			result.addError("statement", stmt.ID, "ID", stmt.ID, "duplicate statement ID")
			continue
		}
		statementIDs[stmt.ID] = stmt

		if stmt.ReferenceMonth.Day() != 1 {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Entity:  "statement",
				ID:      stmt.ID,
				Field:   "ReferenceMonth",
				Value:   domain.FormatDate(stmt.ReferenceMonth),
				Message: "reference month is not the first day of the month",
			})
		}

		key := stmt.CreditCardID + "|" + period.MonthKey(stmt.ReferenceMonth)
		if owner, exists := monthOwners[key]; exists {
			result.addError("statement", stmt.ID, "ReferenceMonth", period.MonthKey(stmt.ReferenceMonth),
				fmt.Sprintf("card %s already has statement %s for this month", stmt.CreditCardID, owner))
		} else {
			monthOwners[key] = stmt.ID
		}

		sum := decimal.Zero
		for _, txn := range transactionsByStatement[stmt.ID] {
			sum = sum.Add(txn.Amount)

			if !txn.Amount.IsPositive() {
				result.addError("transaction", txn.ID, "Amount", txn.Amount.String(), "amount must be positive")
			}
			if txn.StatementID != stmt.ID {
				result.addError("transaction", txn.ID, "StatementID", txn.StatementID,
					fmt.Sprintf("listed under statement %s", stmt.ID))
			}
			if txn.CreditCardID != stmt.CreditCardID {
				result.addError("transaction", txn.ID, "CreditCardID", txn.CreditCardID,
					fmt.Sprintf("belongs to card %s but statement %s is for card %s", txn.CreditCardID, stmt.ID, stmt.CreditCardID))
			}

			fpKey := txn.UserID + "|" + txn.CreditCardID + "|" + txn.Fingerprint
			if other, exists := fingerprints[fpKey]; exists {
				result.addError("transaction", txn.ID, "Fingerprint", txn.Fingerprint,
					fmt.Sprintf("fingerprint already used by transaction %s", other))
			} else {
				fingerprints[fpKey] = txn.ID
			}
		}

		if !sum.Equal(stmt.TotalAmount) {
			result.addError("statement", stmt.ID, "TotalAmount", stmt.TotalAmount.StringFixed(2),
				fmt.Sprintf("total does not match transactions (expected %s)", sum.StringFixed(2)))
		}
	}

	// Transactions filed under statements that were not supplied
	var orphans []string
	for stmtID := range transactionsByStatement {
		if _, ok := statementIDs[stmtID]; !ok && len(transactionsByStatement[stmtID]) > 0 {
			orphans = append(orphans, stmtID)
		}
	}
	sort.Strings(orphans)
	for _, stmtID := range orphans {
		for _, txn := range transactionsByStatement[stmtID] {
			result.addError("transaction", txn.ID, "StatementID", stmtID,
				fmt.Sprintf("references non-existent statement: %s", stmtID))
		}
	}

	return result
}
