package parser

import (
	"context"
	"errors"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
)

// Parser is the strategy interface for all statement file parsers
type Parser interface {
	// Name returns parser identifier (e.g., "ofx", "csv")
	Name() string

	// FileType returns the format recorded on the import audit record
	FileType() domain.FileType

	// CanParse checks if parser can handle this file
	// Returns true if this parser should be used for the file
	CanParse(fileName string, header []byte) bool

	// Parse extracts normalized transactions from file content.
	// Malformed records are skipped, never reported as errors.
	Parse(ctx context.Context, content []byte, opts Options) ([]domain.ParsedTransaction, error)
}

// ErrMappingRequired is returned when a CSV file has no usable column mapping
var ErrMappingRequired = errors.New("column mapping required")
