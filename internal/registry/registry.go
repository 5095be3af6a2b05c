// Package registry selects the statement parser for a file
package registry

import (
	"fmt"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/parser"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/parsers/csv"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/parsers/ofx"
)

// Registry holds all registered parsers. The fallback parser is consulted last.
type Registry struct {
	parsers  []parser.Parser
	fallback parser.Parser
}

// New creates a registry with the built-in OFX parser and the CSV fallback
func New() *Registry {
	return &Registry{
		parsers:  []parser.Parser{ofx.NewParser()},
		fallback: csv.NewParser(),
	}
}

// Register adds a custom parser, checked before the fallback
func (r *Registry) Register(p parser.Parser) {
	r.parsers = append(r.parsers, p)
}

// FindParser returns the first parser accepting the file.
// Parsers see the whole content: OFX markers are not required to sit in a header.
func (r *Registry) FindParser(fileName string, content []byte) (parser.Parser, error) {
	for _, p := range r.parsers {
		if p.CanParse(fileName, content) {
			return p, nil
		}
	}
	if r.fallback != nil && r.fallback.CanParse(fileName, content) {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("no parser found for file: %s", fileName)
}

// ListParsers returns all registered parser names in detection order
func (r *Registry) ListParsers() []string {
	names := make([]string, 0, len(r.parsers)+1)
	for _, p := range r.parsers {
		names = append(names, p.Name())
	}
	if r.fallback != nil {
		names = append(names, r.fallback.Name())
	}
	return names
}
