package ofx

import (
	"html"
	"regexp"
	"strings"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/parser"
)

var stmtTrnBlock = regexp.MustCompile(`(?is)<STMTTRN>(.*?)</STMTTRN>`)

// tagPatterns capture a field value up to the next tag or end of line, which
// covers both <F>v</F> and SGML-style <F>v
var tagPatterns = map[string]*regexp.Regexp{
	"DTPOSTED": regexp.MustCompile(`(?i)<DTPOSTED>\s*([^<\r\n]*)`),
	"TRNAMT":   regexp.MustCompile(`(?i)<TRNAMT>\s*([^<\r\n]*)`),
	"NAME":     regexp.MustCompile(`(?i)<NAME>\s*([^<\r\n]*)`),
	"MEMO":     regexp.MustCompile(`(?i)<MEMO>\s*([^<\r\n]*)`),
	"FITID":    regexp.MustCompile(`(?i)<FITID>\s*([^<\r\n]*)`),
}

// Scan extracts transactions from every <STMTTRN> block in content without
// requiring well-formed OFX. Blocks missing a date or amount are skipped.
func Scan(content []byte) []domain.ParsedTransaction {
	blocks := stmtTrnBlock.FindAllSubmatch(content, -1)
	transactions := make([]domain.ParsedTransaction, 0, len(blocks))

	for _, block := range blocks {
		fields := extractFields(string(block[1]))

		date, ok := parser.ParseDate(fields["DTPOSTED"])
		if !ok {
			continue
		}
		amount := parser.ParseAmount(fields["TRNAMT"])
		if amount.IsZero() {
			continue
		}

		transactions = append(transactions, domain.ParsedTransaction{
			Date:        date,
			Description: pickDescription(fields["NAME"], fields["MEMO"]),
			Amount:      amount.Abs(),
			ExternalID:  fields["FITID"],
		})
	}
	return transactions
}

// textTags hold character data that may carry entities (&amp;, &lt;, &#233;)
var textTags = map[string]bool{"NAME": true, "MEMO": true, "FITID": true}

// extractFields reads the known tags of one STMTTRN block. Text fields are
// entity-decoded so scanned values match what ofxgo returns for the same block.
func extractFields(block string) map[string]string {
	fields := make(map[string]string, len(tagPatterns))
	for tag, pattern := range tagPatterns {
		m := pattern.FindStringSubmatch(block)
		if m == nil {
			continue
		}
		value := m[1]
		if textTags[tag] {
			value = html.UnescapeString(value)
		}
		fields[tag] = strings.TrimSpace(value)
	}
	return fields
}
