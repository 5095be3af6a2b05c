// Package ofx provides OFX/QFX statement parsing
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/parser"
)

// PlaceholderDescription is used when a transaction has neither NAME nor MEMO
const PlaceholderDescription = "Transação OFX"

// Parser implements OFX/QFX parsing with a stateless design.
// Well-formed files are decoded with ofxgo; anything ofxgo rejects goes through
// the tolerant STMTTRN scanner.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared OFX parser instance.
// Safe for concurrent use due to stateless design.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "ofx"
}

// FileType returns the audit file type
func (p *Parser) FileType() domain.FileType {
	return domain.FileTypeOFX
}

// CanParse reports whether the file is OFX: a .ofx name, or an <OFX> or OFXHEADER
// marker anywhere in the content
func (p *Parser) CanParse(fileName string, content []byte) bool {
	return IsOFX(fileName, content)
}

// IsOFX implements OFX format detection
func IsOFX(fileName string, content []byte) bool {
	if strings.EqualFold(filepath.Ext(fileName), ".ofx") {
		return true
	}
	return bytes.Contains(content, []byte("<OFX>")) || bytes.Contains(content, []byte("OFXHEADER"))
}

// Parse extracts transactions from OFX content. Records missing a date or an
// amount are skipped. Options are ignored.
func (p *Parser) Parse(ctx context.Context, content []byte, opts parser.Options) ([]domain.ParsedTransaction, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if txns, err := parseStrict(content); err == nil {
		return txns, nil
	}
	return Scan(content), nil
}

// parseStrict decodes well-formed OFX with ofxgo. Errors mean the caller should
// fall back to the tolerant scanner.
func parseStrict(content []byte) ([]domain.ParsedTransaction, error) {
	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file (%d bytes): %w", len(content), err)
	}

	var lists []*ofxgo.TransactionList
	for _, msg := range response.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			lists = append(lists, stmt.BankTranList)
		}
	}
	for _, msg := range response.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			lists = append(lists, stmt.BankTranList)
		}
	}
	if len(lists) == 0 {
		return nil, fmt.Errorf("no credit card or bank transaction list found in OFX file")
	}

	var transactions []domain.ParsedTransaction
	for _, list := range lists {
		for _, txn := range list.Transactions {
			parsed, ok := extractTransaction(txn)
			if !ok {
				continue
			}
			transactions = append(transactions, parsed)
		}
	}
	return transactions, nil
}

// extractTransaction converts an ofxgo transaction, reporting false for records
// without a date or a non-zero amount
func extractTransaction(txn ofxgo.Transaction) (domain.ParsedTransaction, bool) {
	// Use posted date; if not available, fallback to user date
	date := txn.DtPosted.Time
	if date.IsZero() && txn.DtUser != nil {
		date = txn.DtUser.Time
	}
	if date.IsZero() {
		return domain.ParsedTransaction{}, false
	}

	amount, err := decimal.NewFromString(txn.TrnAmt.String())
	if err != nil || amount.IsZero() {
		return domain.ParsedTransaction{}, false
	}

	return domain.ParsedTransaction{
		Date:        domain.TruncateToDate(date),
		Description: pickDescription(txn.Name.String(), txn.Memo.String()),
		Amount:      amount.Abs(),
		ExternalID:  strings.TrimSpace(txn.FiTID.String()),
	}, true
}

// pickDescription prefers NAME, then MEMO, then the placeholder
func pickDescription(name, memo string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if memo = strings.TrimSpace(memo); memo != "" {
		return memo
	}
	return PlaceholderDescription
}
