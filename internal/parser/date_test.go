package parser

import (
	"testing"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "day first slash", input: "10/03/2024", expected: "2024-03-10"},
		{name: "day first slash single digits", input: "5/3/2024", expected: "2024-03-05"},
		{name: "day first dash", input: "10-03-2024", expected: "2024-03-10"},
		{name: "iso", input: "2024-03-10", expected: "2024-03-10"},
		{name: "iso with time", input: "2024-03-10T15:04:05Z", expected: "2024-03-10"},
		{name: "ofx compact", input: "20240310", expected: "2024-03-10"},
		{name: "ofx compact with time and zone", input: "20240310120000[-3:BRT]", expected: "2024-03-10"},
		{name: "quoted", input: `"10/03/2024"`, expected: "2024-03-10"},
		{name: "fallback slash year first", input: "2024/03/10", expected: "2024-03-10"},
		{name: "fallback month name", input: "Mar 10, 2024", expected: "2024-03-10"},
		{name: "ambiguous assumes day first", input: "03/04/2024", expected: "2024-04-03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := ParseDate(tt.input)
			if !ok {
				t.Fatalf("ParseDate(%q) failed, want %s", tt.input, tt.expected)
			}
			if got := domain.FormatDate(d); got != tt.expected {
				t.Errorf("ParseDate(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseDate_Invalid(t *testing.T) {
	inputs := []string{"", "not a date", "31/02/2024", "32/01/2024", "10/13/2024", "2024-13-01", "20241340"}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			if d, ok := ParseDate(input); ok {
				t.Errorf("ParseDate(%q) = %v, want failure", input, d)
			}
		})
	}
}
