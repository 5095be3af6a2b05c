// Package ui renders colored terminal output for the import CLI
package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
)

const lineWidth = 60

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	red    = color.New(color.FgRed)
	faint  = color.New(color.Faint)
)

// Output is where all ui functions write
var Output io.Writer = color.Output

// Header prints a formatted header
func Header(text string) {
	line := strings.Repeat("=", lineWidth)
	green.Fprintf(Output, "\n%s\n", line)
	green.Fprintf(Output, "%s\n", center(text, lineWidth))
	green.Fprintf(Output, "%s\n\n", line)
}

// Step prints a step indicator
func Step(stepNum, totalSteps int, text string) {
	yellow.Fprintf(Output, "[%d/%d] %s\n", stepNum, totalSteps, text)
}

// Success prints a success message
func Success(text string) {
	green.Fprintf(Output, "  → %s\n", text)
}

// Info prints an info message
func Info(text string) {
	fmt.Fprintf(Output, "  → %s\n", text)
}

// Warning prints a warning message
func Warning(text string) {
	yellow.Fprintf(Output, "  ⚠ %s\n", text)
}

// Error prints an error message
func Error(text string) {
	red.Fprintf(Output, "Error: %s\n", text)
}

// Money formats an amount in Brazilian notation: "R$ 1.234,56"
func Money(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%s", sign, b.String(), frac)
}

// ImportSummary prints the counts of one import
func ImportSummary(fileName string, result *domain.ImportResult) {
	if !result.Success {
		Warning(fmt.Sprintf("%s: nothing imported (%d records)", fileName, result.TotalRecords))
		return
	}
	Success(fmt.Sprintf("%s: %d imported, %d duplicates, %d skipped of %d",
		fileName, result.ImportedCount, result.DuplicateCount, result.SkippedCount, result.TotalRecords))
	faint.Fprintf(Output, "    import %s\n", result.ImportID)
}

// StatementTable prints one line per statement with its period, due date and total
func StatementTable(statements []*domain.Statement) {
	if len(statements) == 0 {
		Info("no statements")
		return
	}
	fmt.Fprintf(Output, "  %-8s  %-10s  %-10s  %16s  %s\n", "MONTH", "CLOSING", "DUE", "TOTAL", "STATUS")
	total := decimal.Zero
	for _, s := range statements {
		fmt.Fprintf(Output, "  %-8s  %-10s  %-10s  %16s  %s\n",
			s.ReferenceMonth.Format("2006-01"),
			optionalDate(s.ClosingDate),
			optionalDate(s.DueDate),
			Money(s.TotalAmount),
			s.Status)
		total = total.Add(s.TotalAmount)
	}
	green.Fprintf(Output, "  %-8s  %-10s  %-10s  %16s\n", "", "", "", Money(total))
}

func optionalDate(d *time.Time) string {
	if d == nil {
		return "-"
	}
	return domain.FormatDate(*d)
}

// center centers text within a given width
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}
