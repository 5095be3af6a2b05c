package parser

import (
	"fmt"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
)

// Options carries per-import parse settings.
//
// Mapping and SkipHeader only apply to CSV input. OFX parsing ignores them.
// Create instances using NewOptions, which validates the mapping when present.
type Options struct {
	fileName   string
	mapping    *domain.ColumnMapping
	skipHeader bool
}

// NewOptions creates validated parse options
func NewOptions(fileName string, mapping *domain.ColumnMapping, skipHeader bool) (Options, error) {
	if mapping != nil {
		if err := mapping.Validate(); err != nil {
			return Options{}, fmt.Errorf("invalid column mapping: %w", err)
		}
	}
	return Options{
		fileName:   fileName,
		mapping:    mapping,
		skipHeader: skipHeader,
	}, nil
}

// FileName returns the original file name
func (o Options) FileName() string { return o.fileName }

// Mapping returns the CSV column mapping, or nil when none was provided
func (o Options) Mapping() *domain.ColumnMapping { return o.mapping }

// SkipHeader reports whether the first CSV row is a header
func (o Options) SkipHeader() bool { return o.skipHeader }
