// Package csv provides delimiter-tolerant CSV statement parsing
package csv

import (
	"context"
	"fmt"
	"strings"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/parser"
)

// Parser implements CSV parsing with a stateless design.
// Safe for concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared CSV parser instance
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "csv"
}

// FileType returns the audit file type
func (p *Parser) FileType() domain.FileType {
	return domain.FileTypeCSV
}

// CanParse accepts any file. CSV is the fallback format and must be registered last.
func (p *Parser) CanParse(fileName string, header []byte) bool {
	return true
}

// Parse extracts transactions using the column mapping in opts.
// Without a mapping, the first row is used to infer one and is then skipped;
// parser.ErrMappingRequired is returned when no confident mapping exists.
func (p *Parser) Parse(ctx context.Context, content []byte, opts parser.Options) ([]domain.ParsedTransaction, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	rows := SplitRows(string(content))
	if len(rows) == 0 {
		return nil, nil
	}

	mapping := opts.Mapping()
	skipHeader := opts.SkipHeader()
	if mapping == nil {
		inferred, ok := InferMapping(rows[0])
		if !ok {
			return nil, fmt.Errorf("failed to infer columns from header %q: %w", strings.Join(rows[0], ","), parser.ErrMappingRequired)
		}
		mapping = inferred
		skipHeader = true
	}

	if skipHeader {
		rows = rows[1:]
	}
	return ParseRows(rows, *mapping), nil
}

// ParseRows converts rows to transactions. Rows with an unparseable date, a zero
// amount, a blank description or too few columns are skipped.
func ParseRows(rows [][]string, mapping domain.ColumnMapping) []domain.ParsedTransaction {
	transactions := make([]domain.ParsedTransaction, 0, len(rows))
	for _, row := range rows {
		txn, ok := parseRow(row, mapping)
		if !ok {
			continue
		}
		transactions = append(transactions, txn)
	}
	return transactions
}

func parseRow(row []string, mapping domain.ColumnMapping) (domain.ParsedTransaction, bool) {
	if len(row) <= mapping.MaxIndex() {
		return domain.ParsedTransaction{}, false
	}

	date, ok := parser.ParseDate(row[mapping.Date])
	if !ok {
		return domain.ParsedTransaction{}, false
	}

	amount := parser.ParseAmount(row[mapping.Amount])
	if amount.IsZero() {
		return domain.ParsedTransaction{}, false
	}

	description := strings.TrimSpace(strings.Trim(row[mapping.Description], `"'`))
	if description == "" {
		return domain.ParsedTransaction{}, false
	}

	txn := domain.ParsedTransaction{
		Date:        date,
		Description: description,
		Amount:      amount.Abs(),
	}
	if mapping.Category != domain.NoColumn {
		txn.Category = strings.TrimSpace(row[mapping.Category])
	}
	return txn, true
}
