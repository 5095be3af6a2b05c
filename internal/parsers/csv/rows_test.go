package csv

import (
	"reflect"
	"testing"
)

func TestSplitRows(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected [][]string
	}{
		{
			name:     "comma delimited",
			input:    "a,b,c\n1,2,3",
			expected: [][]string{{"a", "b", "c"}, {"1", "2", "3"}},
		},
		{
			name:     "semicolon delimited",
			input:    "Data;Descrição;Valor\n10/03/2024;Supermercado;123,45",
			expected: [][]string{{"Data", "Descrição", "Valor"}, {"10/03/2024", "Supermercado", "123", "45"}},
		},
		{
			name:     "quoted delimiter kept",
			input:    `"10/03/2024","Padaria, Centro","1.234,56"`,
			expected: [][]string{{"10/03/2024", "Padaria, Centro", "1.234,56"}},
		},
		{
			name:     "fields trimmed",
			input:    " a ;  b  ; c ",
			expected: [][]string{{"a", "b", "c"}},
		},
		{
			name:     "crlf and blank lines",
			input:    "a,b\r\n\r\n   \r\nc,d\r\n",
			expected: [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:     "empty trailing field",
			input:    "a,b,",
			expected: [][]string{{"a", "b", ""}},
		},
		{
			name:     "byte order mark",
			input:    "\ufeffData,Valor",
			expected: [][]string{{"Data", "Valor"}},
		},
		{
			name:     "empty input",
			input:    "",
			expected: [][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitRows(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("SplitRows() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSplitRows_Restartable(t *testing.T) {
	input := "x;y\n1;2"
	first := SplitRows(input)
	second := SplitRows(input)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("SplitRows() not deterministic: %q vs %q", first, second)
	}
}
