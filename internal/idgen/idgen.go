// Package idgen creates identifiers for cards, imports and transactions
package idgen

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a display name to a URL-safe slug.
// Examples: "Nubank Ultravioleta" → "nubank-ultravioleta", "Itaú Crédito" → "itau-credito"
func Slugify(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}

	// Strip accents
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, name)
	if err != nil {
		return "", fmt.Errorf("failed to normalize name %q: %w", name, err)
	}

	slug := nonSlugChars.ReplaceAllString(strings.ToLower(normalized), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "", fmt.Errorf("name %q contains no alphanumeric characters", name)
	}

	return slug, nil
}

// CardID creates a deterministic card ID from the card name.
// Format: "card-{slug}"
// Example: CardID("Nubank") → "card-nubank"
func CardID(name string) (string, error) {
	slug, err := Slugify(name)
	if err != nil {
		return "", err
	}
	return "card-" + slug, nil
}

// NewImportID returns a random import ID
func NewImportID() string {
	return "imp-" + uuid.NewString()
}

// NewTransactionID returns a random transaction ID
func NewTransactionID() string {
	return "txn-" + uuid.NewString()
}
