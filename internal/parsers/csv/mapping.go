package csv

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
)

// Header patterns run against lower-cased header text with diacritics removed,
// so "Descrição" is matched as "descricao".
var (
	dateHeader        = regexp.MustCompile(`data|date|^dt([^a-z]|$)`)
	descriptionHeader = regexp.MustCompile(`descri|merchant|estabelecimento|historico|memo|payee|nome|name`)
	amountHeader      = regexp.MustCompile(`valor|amount|total|value|preco|price|montante|quantia`)
	categoryHeader    = regexp.MustCompile(`categoria|category`)
)

// InferMapping resolves column indexes from a header row.
// The first unclaimed column matching each field wins, in the order date,
// description, amount, category. Returns false when date, description or
// amount has no matching column.
func InferMapping(header []string) (*domain.ColumnMapping, bool) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(h)
	}

	claimed := make(map[int]bool)
	find := func(pattern *regexp.Regexp) int {
		for i, h := range normalized {
			if !claimed[i] && pattern.MatchString(h) {
				claimed[i] = true
				return i
			}
		}
		return domain.NoColumn
	}

	mapping := &domain.ColumnMapping{
		Date:        find(dateHeader),
		Description: find(descriptionHeader),
		Amount:      find(amountHeader),
		Category:    find(categoryHeader),
	}
	if mapping.Date == domain.NoColumn || mapping.Description == domain.NoColumn || mapping.Amount == domain.NoColumn {
		return nil, false
	}
	return mapping, true
}

// normalizeHeader lower-cases and strips diacritics
func normalizeHeader(h string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, h)
	if err != nil {
		stripped = h
	}
	return strings.ToLower(strings.TrimSpace(stripped))
}
