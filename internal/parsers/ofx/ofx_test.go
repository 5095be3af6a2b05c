package ofx

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/fingerprint"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/parser"
)

const creditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240101120000
<LANGUAGE>ENG
<FI>
<ORG>TESTCREDITCARD
<FID>98765
</FI>
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101000000
<DTEND>20240131235959
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000
<TRNAMT>-25.99
<FITID>CC001
<NAME>Amazon Purchase
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000
<TRNAMT>-10.00
<FITID>CC002
<MEMO>Coffee shop
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20240131235959
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func parse(t *testing.T, content string) []domain.ParsedTransaction {
	t.Helper()
	opts, err := parser.NewOptions("extrato.ofx", nil, false)
	if err != nil {
		t.Fatalf("NewOptions() error = %v", err)
	}
	txns, err := NewParser().Parse(context.Background(), []byte(content), opts)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return txns
}

func TestName(t *testing.T) {
	p := NewParser()
	if got := p.Name(); got != "ofx" {
		t.Errorf("Name() = %q, want %q", got, "ofx")
	}
	if got := p.FileType(); got != domain.FileTypeOFX {
		t.Errorf("FileType() = %q, want %q", got, domain.FileTypeOFX)
	}
}

func TestCanParse(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		content  string
		expected bool
	}{
		{name: "ofx extension", fileName: "extrato.ofx", content: "anything", expected: true},
		{name: "ofx extension uppercase", fileName: "EXTRATO.OFX", content: "", expected: true},
		{name: "OFXHEADER marker", fileName: "download", content: "OFXHEADER:100\nDATA:OFXSGML\n", expected: true},
		{name: "OFX tag", fileName: "statement.txt", content: "<OFX><SIGNONMSGSRSV1>", expected: true},
		{name: "csv", fileName: "fatura.csv", content: "Data;Descrição;Valor", expected: false},
		{name: "lowercase tag is not a marker", fileName: "fatura.csv", content: "<ofx>", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewParser().CanParse(tt.fileName, []byte(tt.content)); got != tt.expected {
				t.Errorf("CanParse(%q) = %v, want %v", tt.fileName, got, tt.expected)
			}
		})
	}
}

func TestParse_Extraction(t *testing.T) {
	content := `<STMTTRN><DTPOSTED>20240310</DTPOSTED><TRNAMT>-123.45</TRNAMT><NAME>Supermercado</NAME><FITID>ABC1</FITID></STMTTRN>`

	txns := parse(t, content)
	if len(txns) != 1 {
		t.Fatalf("Parse() returned %d transactions, want 1", len(txns))
	}

	got := txns[0]
	if domain.FormatDate(got.Date) != "2024-03-10" {
		t.Errorf("Date = %s, want 2024-03-10", domain.FormatDate(got.Date))
	}
	if got.Description != "Supermercado" {
		t.Errorf("Description = %q, want Supermercado", got.Description)
	}
	if !got.Amount.Equal(decimal.RequireFromString("123.45")) {
		t.Errorf("Amount = %s, want 123.45", got.Amount)
	}
	if got.ExternalID != "ABC1" {
		t.Errorf("ExternalID = %q, want ABC1", got.ExternalID)
	}
}

func TestParse_WellFormedCreditCard(t *testing.T) {
	txns := parse(t, creditCardOFX)
	if len(txns) != 2 {
		t.Fatalf("Parse() returned %d transactions, want 2", len(txns))
	}

	if txns[0].Description != "Amazon Purchase" {
		t.Errorf("Description = %q, want %q", txns[0].Description, "Amazon Purchase")
	}
	if !txns[0].Amount.Equal(decimal.RequireFromString("25.99")) {
		t.Errorf("Amount = %s, want 25.99", txns[0].Amount)
	}
	if txns[0].ExternalID != "CC001" {
		t.Errorf("ExternalID = %q, want CC001", txns[0].ExternalID)
	}
	if domain.FormatDate(txns[0].Date) != "2024-01-10" {
		t.Errorf("Date = %s, want 2024-01-10", domain.FormatDate(txns[0].Date))
	}

	// No NAME: MEMO is used
	if txns[1].Description != "Coffee shop" {
		t.Errorf("Description = %q, want %q", txns[1].Description, "Coffee shop")
	}
}

func TestParse_SGMLUnclosedTags(t *testing.T) {
	content := `OFXHEADER:100
<OFX>
<BANKTRANLIST>
<stmttrn>
<TRNTYPE>DEBIT
<DTPOSTED>20240305100000[-3:BRT]
<TRNAMT>-89,90
<FITID>202403050001
<MEMO>PAG*Farmacia
</stmttrn>
<STMTTRN>
<DTPOSTED>20240306
<TRNAMT>45.00
<FITID>202403060001
</STMTTRN>
</BANKTRANLIST>
</OFX>`

	txns := parse(t, content)
	if len(txns) != 2 {
		t.Fatalf("Parse() returned %d transactions, want 2", len(txns))
	}

	if domain.FormatDate(txns[0].Date) != "2024-03-05" {
		t.Errorf("Date = %s, want 2024-03-05", domain.FormatDate(txns[0].Date))
	}
	if !txns[0].Amount.Equal(decimal.RequireFromString("89.90")) {
		t.Errorf("Amount = %s, want 89.90", txns[0].Amount)
	}
	if txns[0].Description != "PAG*Farmacia" {
		t.Errorf("Description = %q, want PAG*Farmacia", txns[0].Description)
	}
	if txns[1].Description != PlaceholderDescription {
		t.Errorf("Description = %q, want placeholder", txns[1].Description)
	}
	if txns[1].ExternalID != "202403060001" {
		t.Errorf("ExternalID = %q", txns[1].ExternalID)
	}
}

func TestScan_SkipsIncompleteBlocks(t *testing.T) {
	content := `<STMTTRN><TRNAMT>-10.00</TRNAMT><NAME>No date</NAME></STMTTRN>
<STMTTRN><DTPOSTED>20240310</DTPOSTED><NAME>No amount</NAME></STMTTRN>
<STMTTRN><DTPOSTED>20240310</DTPOSTED><TRNAMT>0.00</TRNAMT><NAME>Zero</NAME></STMTTRN>
<STMTTRN><DTPOSTED>garbage</DTPOSTED><TRNAMT>5.00</TRNAMT><NAME>Bad date</NAME></STMTTRN>
<STMTTRN><DTPOSTED>20240311</DTPOSTED><TRNAMT>7.50</TRNAMT><NAME>Kept</NAME></STMTTRN>`

	txns := Scan([]byte(content))
	if len(txns) != 1 {
		t.Fatalf("Scan() returned %d transactions, want 1", len(txns))
	}
	if txns[0].Description != "Kept" {
		t.Errorf("Description = %q, want Kept", txns[0].Description)
	}
	if txns[0].ExternalID != "" {
		t.Errorf("ExternalID = %q, want empty", txns[0].ExternalID)
	}
}

func TestScan_NameOverMemo(t *testing.T) {
	content := `<STMTTRN><DTPOSTED>20240310<TRNAMT>1.00<MEMO>memo text<NAME>name text</STMTTRN>`

	txns := Scan([]byte(content))
	if len(txns) != 1 {
		t.Fatalf("Scan() returned %d transactions, want 1", len(txns))
	}
	if txns[0].Description != "name text" {
		t.Errorf("Description = %q, want %q", txns[0].Description, "name text")
	}
}

func TestScan_NoBlocks(t *testing.T) {
	if txns := Scan([]byte("<OFX></OFX>")); len(txns) != 0 {
		t.Errorf("Scan() returned %d transactions, want 0", len(txns))
	}
}

func TestParse_AmountsAreAbsolute(t *testing.T) {
	content := `<STMTTRN><DTPOSTED>20240310<TRNAMT>-1.00<NAME>a</STMTTRN>
<STMTTRN><DTPOSTED>20240310<TRNAMT>2.00<NAME>b</STMTTRN>
<STMTTRN><DTPOSTED>20240310<TRNAMT>R$ -3,50<NAME>c</STMTTRN>`

	for _, txn := range parse(t, content) {
		if !txn.Amount.IsPositive() {
			t.Errorf("%s: amount %s is not positive", txn.Description, txn.Amount)
		}
	}
}

func TestParse_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts, _ := parser.NewOptions("extrato.ofx", nil, false)
	_, err := NewParser().Parse(ctx, []byte(creditCardOFX), opts)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Parse() error = %v, want context.Canceled", err)
	}
}

func TestScan_MatchesStrictFingerprints(t *testing.T) {
	content := strings.Replace(creditCardOFX, "<NAME>Amazon Purchase", "<NAME>Supermercado &amp; Cia", 1)
	content = strings.Replace(content, "<MEMO>Coffee shop", "<MEMO>Caf&#233; &lt;Centro&gt;", 1)

	strict, err := parseStrict([]byte(content))
	if err != nil {
		t.Fatalf("parseStrict() error = %v", err)
	}
	scanned := Scan([]byte(content))
	if len(strict) != 2 || len(scanned) != 2 {
		t.Fatalf("got %d strict and %d scanned transactions, want 2 each", len(strict), len(scanned))
	}

	if scanned[0].Description != "Supermercado & Cia" {
		t.Errorf("Scan() description = %q, want %q", scanned[0].Description, "Supermercado & Cia")
	}
	if scanned[1].Description != "Café <Centro>" {
		t.Errorf("Scan() description = %q, want %q", scanned[1].Description, "Café <Centro>")
	}
	for i := range strict {
		if got, want := fingerprint.ForTransaction(scanned[i]), fingerprint.ForTransaction(strict[i]); got != want {
			t.Errorf("transaction %d: scanned fingerprint %s, strict fingerprint %s (%+v vs %+v)", i, got, want, scanned[i], strict[i])
		}
	}
}

func TestParse_FallbackDecodesEntities(t *testing.T) {
	// A comma-decimal amount makes ofxgo reject the file
	content := strings.Replace(creditCardOFX, "<NAME>Amazon Purchase", "<NAME>Supermercado &amp; Cia", 1)
	content = strings.Replace(content, "<TRNAMT>-25.99", "<TRNAMT>-25,99", 1)
	if _, err := parseStrict([]byte(content)); err == nil {
		t.Fatal("parseStrict() expected error for comma-decimal amount")
	}

	txns := parse(t, content)
	if len(txns) != 2 {
		t.Fatalf("Parse() returned %d transactions, want 2", len(txns))
	}
	if txns[0].Description != "Supermercado & Cia" {
		t.Errorf("Parse() description = %q, want %q", txns[0].Description, "Supermercado & Cia")
	}
	if !txns[0].Amount.Equal(decimal.RequireFromString("25.99")) {
		t.Errorf("Parse() amount = %s, want 25.99", txns[0].Amount)
	}
}
