// Package output writes card statements and their transactions as JSON exports
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
)

// Reader is the store surface an export reads from
type Reader interface {
	GetCard(ctx context.Context, userID, cardID string) (*domain.CreditCard, error)
	ListStatements(ctx context.Context, userID, cardID string) ([]*domain.Statement, error)
	ListTransactionsByStatement(ctx context.Context, statementID string) ([]*domain.Transaction, error)
}

// Export is one card with all of its statements
type Export struct {
	Card       *domain.CreditCard `json:"card"`
	Statements []StatementExport  `json:"statements"`
}

// StatementExport is a statement with its transactions
type StatementExport struct {
	*domain.Statement
	Transactions []*domain.Transaction `json:"transactions"`
}

// WriteOptions configures how the export is written
type WriteOptions struct {
	// MergeMode loads the existing file and replaces only the exported statements
	MergeMode bool
	// FilePath is the output path, empty for stdout
	FilePath string
}

// Collect reads the card, its statements and their transactions for userID
func Collect(ctx context.Context, r Reader, userID, cardID string) (*Export, error) {
	card, err := r.GetCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	stmts, err := r.ListStatements(ctx, userID, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list statements: %w", err)
	}

	export := &Export{Card: card, Statements: make([]StatementExport, 0, len(stmts))}
	for _, stmt := range stmts {
		txns, err := r.ListTransactionsByStatement(ctx, stmt.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list transactions of %s: %w", stmt.ID, err)
		}
		if txns == nil {
			txns = []*domain.Transaction{}
		}
		export.Statements = append(export.Statements, StatementExport{Statement: stmt, Transactions: txns})
	}
	return export, nil
}

// WriteExport serializes the export to JSON with 2-space indentation
func WriteExport(export *Export, w io.Writer) error {
	if export == nil {
		return fmt.Errorf("export cannot be nil")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("failed to encode export as JSON: %w", err)
	}
	return nil
}

// WriteExportToFile writes the export to a file or stdout based on options
func WriteExportToFile(export *Export, opts WriteOptions) (err error) {
	if export == nil {
		return fmt.Errorf("export cannot be nil")
	}

	if opts.MergeMode && opts.FilePath != "" {
		existing, err := LoadExport(opts.FilePath)
		switch {
		case os.IsNotExist(err):
			fmt.Fprintf(os.Stderr, "Warning: merge mode requested but %s does not exist, creating new file\n", opts.FilePath)
		case err != nil:
			return fmt.Errorf("failed to load existing export for merge: %w", err)
		default:
			if err := mergeExports(existing, export); err != nil {
				return fmt.Errorf("failed to merge exports: %w", err)
			}
			export = existing
		}
	}

	if opts.FilePath == "" {
		return WriteExport(export, os.Stdout)
	}

	f, err := os.Create(opts.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", opts.FilePath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file %s: %w", opts.FilePath, closeErr)
		}
	}()

	if err = WriteExport(export, f); err != nil {
		return fmt.Errorf("failed to write export to %s: %w", opts.FilePath, err)
	}
	return nil
}

// LoadExport reads an existing export file. A missing file is returned unwrapped
// so callers can check os.IsNotExist.
func LoadExport(filePath string) (*Export, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var export Export
	if err := json.NewDecoder(f).Decode(&export); err != nil {
		return nil, fmt.Errorf("failed to decode export JSON: %w", err)
	}
	return &export, nil
}

// mergeExports replaces target's statements with source's by ID and keeps the rest.
// Exports of different cards never merge.
func mergeExports(target, source *Export) error {
	if target == nil || source == nil {
		return fmt.Errorf("exports cannot be nil")
	}
	if target.Card == nil || source.Card == nil {
		return fmt.Errorf("export has no card")
	}
	if target.Card.ID != source.Card.ID {
		return fmt.Errorf("cannot merge card %s into export of card %s", source.Card.ID, target.Card.ID)
	}

	byID := make(map[string]StatementExport, len(target.Statements)+len(source.Statements))
	for _, s := range target.Statements {
		byID[s.ID] = s
	}
	for _, s := range source.Statements {
		byID[s.ID] = s
	}

	merged := make([]StatementExport, 0, len(byID))
	for _, s := range byID {
		merged = append(merged, s)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ReferenceMonth.Before(merged[j].ReferenceMonth)
	})

	target.Card = source.Card
	target.Statements = merged
	return nil
}
