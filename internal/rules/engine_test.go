package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
)

func TestNewEngine_ValidRules(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Test Rule"
    pattern: "TEST"
    match_type: "contains"
    priority: 100
    category: "groceries"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if len(engine.rules) != 1 {
		t.Fatalf("NewEngine() rules count = %d, want 1", len(engine.rules))
	}

	rule := engine.rules[0]
	if rule.Name != "Test Rule" {
		t.Errorf("rule.Name = %s, want Test Rule", rule.Name)
	}
	if rule.Priority != 100 {
		t.Errorf("rule.Priority = %d, want 100", rule.Priority)
	}
	if rule.Category != "groceries" {
		t.Errorf("rule.Category = %s, want groceries", rule.Category)
	}
}

func TestNewEngine_InvalidRules(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "invalid category",
			yaml: `
rules:
  - name: "Bad"
    pattern: "TEST"
    match_type: "contains"
    priority: 100
    category: "invalid_category"
`,
		},
		{
			name: "priority too high",
			yaml: `
rules:
  - name: "Bad"
    pattern: "TEST"
    match_type: "contains"
    priority: 1000
    category: "groceries"
`,
		},
		{
			name: "negative priority",
			yaml: `
rules:
  - name: "Bad"
    pattern: "TEST"
    match_type: "contains"
    priority: -1
    category: "groceries"
`,
		},
		{
			name: "invalid match type",
			yaml: `
rules:
  - name: "Bad"
    pattern: "TEST"
    match_type: "regex"
    priority: 100
    category: "groceries"
`,
		},
		{
			name: "empty pattern",
			yaml: `
rules:
  - name: "Bad"
    pattern: "   "
    match_type: "contains"
    priority: 100
    category: "groceries"
`,
		},
		{
			name: "invalid yaml",
			yaml: "rules: [\n  - name: broken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine([]byte(tt.yaml)); err == nil {
				t.Error("NewEngine() expected error")
			}
		})
	}
}

func TestNewRule(t *testing.T) {
	rule, err := NewRule("Uber", "uber", MatchTypeContains, 100, "transport")
	if err != nil {
		t.Fatalf("NewRule() error = %v", err)
	}
	if rule.Category != "transport" {
		t.Errorf("rule.Category = %s, want transport", rule.Category)
	}

	if _, err := NewRule("Bad", "uber", MatchTypeContains, 100, "nope"); err == nil {
		t.Error("NewRule() expected error for invalid category")
	}
}

func TestNewEngine_PrioritySorting(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Low Priority"
    pattern: "LOW"
    match_type: "contains"
    priority: 100
    category: "groceries"
  - name: "High Priority"
    pattern: "HIGH"
    match_type: "contains"
    priority: 900
    category: "fees"
  - name: "Medium Priority"
    pattern: "MED"
    match_type: "contains"
    priority: 500
    category: "utilities"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if len(engine.rules) != 3 {
		t.Fatalf("NewEngine() rules count = %d, want 3", len(engine.rules))
	}

	want := []string{"High Priority", "Medium Priority", "Low Priority"}
	for i, name := range want {
		if engine.rules[i].Name != name {
			t.Errorf("rules[%d].Name = %s, want %s", i, engine.rules[i].Name, name)
		}
	}
}

func TestMatch(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Padaria"
    pattern: "PADARIA"
    match_type: "contains"
    priority: 100
    category: "dining"
  - name: "Netflix"
    pattern: "netflix.com"
    match_type: "exact"
    priority: 100
    category: "subscriptions"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	tests := []struct {
		name        string
		description string
		wantMatch   bool
		wantCat     domain.Category
	}{
		{"contains exact text", "PADARIA", true, domain.CategoryDining},
		{"contains case insensitive", "padaria", true, domain.CategoryDining},
		{"contains substring", "PADARIA REAL LTDA", true, domain.CategoryDining},
		{"contains collapsed whitespace", "  Padaria   Real ", true, domain.CategoryDining},
		{"exact", "NETFLIX.COM", true, domain.CategorySubscriptions},
		{"exact rejects substring", "NETFLIX.COM SP", false, ""},
		{"no match", "POSTO", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, matched := engine.Match(tt.description)
			if matched != tt.wantMatch {
				t.Fatalf("Match(%q) matched = %v, want %v", tt.description, matched, tt.wantMatch)
			}
			if matched && result.Category != tt.wantCat {
				t.Errorf("Match(%q) category = %s, want %s", tt.description, result.Category, tt.wantCat)
			}
		})
	}
}

func TestMatch_FirstMatchWins(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Uber"
    pattern: "uber"
    match_type: "contains"
    priority: 100
    category: "transport"
  - name: "Uber Eats"
    pattern: "uber eats"
    match_type: "contains"
    priority: 200
    category: "dining"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	result, matched := engine.Match("UBER EATS PEDIDO")
	if !matched {
		t.Fatal("Match() expected match")
	}
	if result.RuleName != "Uber Eats" {
		t.Errorf("Match() rule = %s, want Uber Eats", result.RuleName)
	}
}

func TestCategorize(t *testing.T) {
	engine, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	tests := []struct {
		description string
		want        domain.Category
	}{
		{"Supermercado", domain.CategoryGroceries},
		{"UBER *TRIP", domain.CategoryTransport},
		{"UBER EATS", domain.CategoryDining},
		{"IOF COMPRA INTERNACIONAL", domain.CategoryFees},
		{"POSTO SHELL", domain.CategoryFuel},
		{"FARMÁCIA  SÃO JOÃO", domain.CategoryHealth},
		{"Loja Desconhecida", DefaultCategory},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			if got := engine.Categorize(tt.description); got != tt.want {
				t.Errorf("Categorize(%q) = %s, want %s", tt.description, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Padaria":             "padaria",
		"  UBER   *TRIP ":     "uber *trip",
		"Açaí da Esquina":     "acai da esquina",
		"DROGARIA\tSÃO PAULO": "drogaria sao paulo",
	}
	for in, want := range tests {
		if got := normalize(in); got != want {
			t.Errorf("normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadEmbedded_Sorted(t *testing.T) {
	engine, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}
	if len(engine.rules) == 0 {
		t.Fatal("LoadEmbedded() returned empty rules")
	}
	for i := 1; i < len(engine.rules); i++ {
		if engine.rules[i].Priority > engine.rules[i-1].Priority {
			t.Errorf("rules not sorted at %d: %d > %d", i, engine.rules[i].Priority, engine.rules[i-1].Priority)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	rulesFile := filepath.Join(t.TempDir(), "custom_rules.yaml")

	rulesYAML := `
rules:
  - name: "Custom Rule"
    pattern: "CUSTOM MERCHANT"
    match_type: "contains"
    priority: 100
    category: "shopping"
`
	if err := os.WriteFile(rulesFile, []byte(rulesYAML), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	engine, err := Load(rulesFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	result, matched := engine.Match("CUSTOM MERCHANT STORE")
	if !matched {
		t.Fatal("Match() expected match for CUSTOM MERCHANT STORE")
	}
	if result.Category != domain.CategoryShopping {
		t.Errorf("Match() category = %s, want shopping", result.Category)
	}
}

func TestLoadFromFile_NotExists(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/rules.yaml"); err == nil {
		t.Error("LoadFromFile() expected error for non-existent file")
	}
}

func TestGetRules_ReturnsCopy(t *testing.T) {
	engine, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	rules := engine.GetRules()
	rules[0].Category = "changed"
	if engine.rules[0].Category == "changed" {
		t.Error("GetRules() returned the internal slice")
	}
}
