package importer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/fingerprint"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/parser"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/parsers/csv"
)

// previewRows is the number of sample rows shown for interactive mapping
const previewRows = 5

// FileRequest is a raw statement file to import
type FileRequest struct {
	CardID   string
	FileName string
	Content  []byte
	// Mapping is the explicit CSV column mapping; nil infers it from the header
	Mapping    *domain.ColumnMapping
	SkipHeader bool
	ClosingDay *int
}

// ParsedFile is the parse stage output of a file
type ParsedFile struct {
	FileType     domain.FileType
	FileHash     string
	Transactions []domain.ParsedTransaction
}

// ParseFile detects the format and parses the file without writing anything
func (im *Importer) ParseFile(ctx context.Context, fileName string, content []byte, mapping *domain.ColumnMapping, skipHeader bool) (*ParsedFile, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmptyFile
	}

	p, err := im.registry.FindParser(fileName, content)
	if err != nil {
		return nil, err
	}

	opts, err := parser.NewOptions(fileName, mapping, skipHeader)
	if err != nil {
		return nil, err
	}

	txns, err := p.Parse(ctx, content, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s as %s: %w", fileName, p.Name(), err)
	}

	return &ParsedFile{
		FileType:     p.FileType(),
		FileHash:     fingerprint.FileHash(content),
		Transactions: txns,
	}, nil
}

// ImportFile parses a statement file and imports its transactions.
// CSV files without an explicit mapping need a recognizable header, otherwise
// ErrMappingRequired is returned and nothing is written.
func (im *Importer) ImportFile(ctx context.Context, userID string, req FileRequest) (*domain.ImportResult, error) {
	parsed, err := im.ParseFile(ctx, req.FileName, req.Content, req.Mapping, req.SkipHeader)
	if err != nil {
		return nil, err
	}

	return im.ImportTransactions(ctx, userID, Request{
		CardID:       req.CardID,
		Transactions: parsed.Transactions,
		FileName:     req.FileName,
		FileHash:     parsed.FileHash,
		FileType:     parsed.FileType,
		ClosingDay:   req.ClosingDay,
	})
}

// Preview describes a file for the column mapping step
type Preview struct {
	FileType domain.FileType       `json:"fileType"`
	Header   []string              `json:"header,omitempty"`
	Mapping  *domain.ColumnMapping `json:"mapping,omitempty"`
	Rows     [][]string            `json:"rows,omitempty"`
	// Transactions holds sample OFX transactions
	Transactions []domain.ParsedTransaction `json:"transactions,omitempty"`
}

// Preview returns the detected format and, for CSV, the header, the inferred
// mapping (nil when not confident) and sample rows
func (im *Importer) Preview(ctx context.Context, fileName string, content []byte) (*Preview, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmptyFile
	}

	p, err := im.registry.FindParser(fileName, content)
	if err != nil {
		return nil, err
	}

	if p.FileType() != domain.FileTypeCSV {
		opts, err := parser.NewOptions(fileName, nil, false)
		if err != nil {
			return nil, err
		}
		txns, err := p.Parse(ctx, content, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s as %s: %w", fileName, p.Name(), err)
		}
		return &Preview{FileType: p.FileType(), Transactions: txns[:min(len(txns), previewRows)]}, nil
	}

	rows := csv.SplitRows(string(content))
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	preview := &Preview{FileType: domain.FileTypeCSV, Header: rows[0]}
	if mapping, ok := csv.InferMapping(rows[0]); ok {
		preview.Mapping = mapping
	}
	preview.Rows = rows[1:min(len(rows), previewRows+1)]
	return preview, nil
}
