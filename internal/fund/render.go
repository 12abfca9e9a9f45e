package fund

import (
	"fmt"
	"sort"
	"strings"
)

// RenderSchemeText produces the textual form of a scheme record used for
// chunking and retrieval. One "Label: value" line per populated field, in a
// fixed order so re-rendering an unchanged record yields identical text.
func RenderSchemeText(r *SchemeRecord) string {
	var lines []string
	lines = append(lines,
		fmt.Sprintf("Scheme Name: %s", r.SchemeName),
		fmt.Sprintf("Scheme Code: %s", r.SchemeCode),
	)
	if r.Category != "" {
		lines = append(lines, fmt.Sprintf("Category: %s", r.Category))
	}
	if r.NAV != 0 {
		lines = append(lines, fmt.Sprintf("Latest NAV: %.2f", r.NAV))
		if r.NAVDate != "" {
			lines = append(lines, fmt.Sprintf("NAV Date: %s", r.NAVDate))
		}
	}
	if r.AUM != 0 {
		lines = append(lines, fmt.Sprintf("AUM: %.2f Cr", r.AUM))
	}
	if r.ExpenseRatio != 0 {
		lines = append(lines, fmt.Sprintf("Expense Ratio: %.2f%%", r.ExpenseRatio))
	}
	if len(r.FundManagers) > 0 {
		lines = append(lines, fmt.Sprintf("Fund Managers: %s", strings.Join(r.FundManagers, ", ")))
	}
	if r.InceptionDate != "" {
		lines = append(lines, fmt.Sprintf("Inception Date: %s", r.InceptionDate))
	}
	if r.Benchmark != "" {
		lines = append(lines, fmt.Sprintf("Benchmark: %s", r.Benchmark))
	}
	if r.RiskLevel != "" {
		lines = append(lines, fmt.Sprintf("Risk Level: %s", r.RiskLevel))
	}
	if r.MinInvestment != 0 {
		lines = append(lines, fmt.Sprintf("Minimum Investment: %.2f", r.MinInvestment))
	}
	if r.SIPMin != 0 {
		lines = append(lines, fmt.Sprintf("SIP Minimum: %.2f", r.SIPMin))
	}
	for _, horizon := range sortedHorizons(r.Returns) {
		lines = append(lines, fmt.Sprintf("%s Return: %.2f%%", horizon, r.Returns[horizon]))
	}
	return strings.Join(lines, "\n")
}

// RenderFactsheetText produces the textual form of a factsheet record:
// the structured sections in a fixed order followed by the raw text.
func RenderFactsheetText(f *FactsheetRecord) string {
	var lines []string
	lines = append(lines,
		fmt.Sprintf("Factsheet: %s", f.SchemeName),
		fmt.Sprintf("Scheme Code: %s", f.SchemeCode),
	)
	names := make([]string, 0, len(f.Sections))
	for name := range f.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %s", name, f.Sections[name]))
	}
	if f.RawText != "" {
		lines = append(lines, f.RawText)
	}
	return strings.Join(lines, "\n")
}

// sortedHorizons orders return horizons by duration (1Y before 3Y before 10Y)
// rather than lexicographically.
func sortedHorizons(returns map[string]float64) []string {
	horizons := make([]string, 0, len(returns))
	for h := range returns {
		horizons = append(horizons, h)
	}
	sort.Slice(horizons, func(i, j int) bool {
		if len(horizons[i]) != len(horizons[j]) {
			return len(horizons[i]) < len(horizons[j])
		}
		return horizons[i] < horizons[j]
	})
	return horizons
}
