// Package fingerprint derives the deduplication key of a card transaction.
//
// Every code path that writes a transaction (import, manual create, manual
// update) must use Generate so that the same purchase always yields the same key.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
)

const (
	// MaxDescriptionLength bounds the normalized description, in runes
	MaxDescriptionLength = 50

	separator = "|"
)

// NormalizeDescription applies NFC, lower-cases, collapses whitespace runs to a
// single space, trims and truncates to MaxDescriptionLength runes
func NormalizeDescription(description string) string {
	normalized := strings.ToLower(norm.NFC.String(description))
	normalized = strings.Join(strings.Fields(normalized), " ")

	runes := []rune(normalized)
	if len(runes) > MaxDescriptionLength {
		normalized = strings.TrimSpace(string(runes[:MaxDescriptionLength]))
	}
	return normalized
}

// Generate creates a SHA256 fingerprint.
// Format: SHA256("{date}|{abs amount, 2 places}|{normalized description}[|{externalID}]")
func Generate(date time.Time, amount decimal.Decimal, description, externalID string) string {
	parts := []string{
		domain.FormatDate(date),
		amount.Abs().StringFixed(2),
		NormalizeDescription(description),
	}
	if externalID = strings.TrimSpace(externalID); externalID != "" {
		parts = append(parts, externalID)
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, separator)))
	return hex.EncodeToString(hash[:])
}

// ForTransaction fingerprints a parsed transaction
func ForTransaction(txn domain.ParsedTransaction) string {
	return Generate(txn.Date, txn.Amount, txn.Description, txn.ExternalID)
}

// FileHash returns the hex SHA256 of raw file content
func FileHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
