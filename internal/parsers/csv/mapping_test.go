package csv

import (
	"testing"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
)

func TestInferMapping(t *testing.T) {
	tests := []struct {
		name     string
		header   []string
		expected domain.ColumnMapping
	}{
		{
			name:     "portuguese",
			header:   []string{"Data", "Descrição", "Valor"},
			expected: domain.ColumnMapping{Date: 0, Description: 1, Amount: 2, Category: domain.NoColumn},
		},
		{
			name:     "english reordered",
			header:   []string{"Amount", "Transaction Date", "Merchant"},
			expected: domain.ColumnMapping{Date: 1, Description: 2, Amount: 0, Category: domain.NoColumn},
		},
		{
			name:     "decomposed accents",
			header:   []string{"Data", "Descrição", "Valor (R$)"},
			expected: domain.ColumnMapping{Date: 0, Description: 1, Amount: 2, Category: domain.NoColumn},
		},
		{
			name:     "upper case with category",
			header:   []string{"DATA", "HISTÓRICO", "CATEGORIA", "VALOR"},
			expected: domain.ColumnMapping{Date: 0, Description: 1, Amount: 3, Category: 2},
		},
		{
			name:     "dt abbreviation",
			header:   []string{"dt", "estabelecimento", "total"},
			expected: domain.ColumnMapping{Date: 0, Description: 1, Amount: 2, Category: domain.NoColumn},
		},
		{
			name:     "first match wins",
			header:   []string{"Data", "Data Compra", "Descrição", "Valor", "Valor USD"},
			expected: domain.ColumnMapping{Date: 0, Description: 2, Amount: 3, Category: domain.NoColumn},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := InferMapping(tt.header)
			if !ok {
				t.Fatalf("InferMapping(%q) found no mapping", tt.header)
			}
			if *got != tt.expected {
				t.Errorf("InferMapping(%q) = %+v, want %+v", tt.header, *got, tt.expected)
			}
			if err := got.Validate(); err != nil {
				t.Errorf("inferred mapping invalid: %v", err)
			}
		})
	}
}

func TestInferMapping_NoConfidentMapping(t *testing.T) {
	headers := [][]string{
		{"Data", "Descrição"},
		{"10/03/2024", "Supermercado", "123,45"},
		{"col1", "col2", "col3"},
		{},
	}

	for _, header := range headers {
		if got, ok := InferMapping(header); ok {
			t.Errorf("InferMapping(%q) = %+v, want no mapping", header, *got)
		}
	}
}
