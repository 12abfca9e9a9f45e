package fund

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidSourceURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"official primary domain", "https://mf.nipponindiaim.com/funds/small-cap", true},
		{"official bare domain", "https://nipponindiaim.com/about", true},
		{"subdomain of allowed domain", "https://www.amfiindia.com/nav-history", true},
		{"regulator domain", "https://sebi.gov.in/filings", true},
		{"unrelated domain", "https://example.com/nav", false},
		{"lookalike domain", "https://mf.nipponindiaim.com.evil.io/funds", false},
		{"suffix without dot boundary", "https://fakenipponindiaim.com/funds", false},
		{"non-http scheme", "ftp://mf.nipponindiaim.com/file", false},
		{"empty", "", false},
		{"garbage", "://not-a-url", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidSourceURL(tt.url))
		})
	}
}

func TestNormalizeURL_ResolvesRelative(t *testing.T) {
	got := NormalizeURL("/FundsAndPerformance/Pages/Small-Cap.aspx", "https://mf.nipponindiaim.com")
	assert.Equal(t, "https://mf.nipponindiaim.com/FundsAndPerformance/Pages/Small-Cap.aspx", got)
}

func TestNormalizeURL_RejectsOffDomain(t *testing.T) {
	assert.Empty(t, NormalizeURL("https://example.com/page", ""))
	assert.Empty(t, NormalizeURL("", "https://mf.nipponindiaim.com"))
}

func TestAttributedFields(t *testing.T) {
	rec := &SchemeRecord{
		SchemeCode: "118778",
		SchemeName: "Nippon India Small Cap Fund",
		NAV:        125.45,
		NAVDate:    "15-01-2024",
		Returns:    map[string]float64{"1Y": 32.1},
	}
	fields := rec.AttributedFields()
	assert.ElementsMatch(t, []string{"scheme_name", "nav", "nav_date", "returns"}, fields)

	// Structural fields never require attribution.
	assert.NotContains(t, fields, "scheme_code")
	assert.NotContains(t, fields, "field_sources")
}

func TestValidationStatusEligible(t *testing.T) {
	assert.True(t, StatusValid.Eligible())
	assert.True(t, StatusPartial.Eligible())
	assert.True(t, StatusPending.Eligible())
	assert.False(t, StatusInvalid.Eligible())
	assert.False(t, StatusError.Eligible())
}

func TestRenderSchemeText(t *testing.T) {
	rec := &SchemeRecord{
		SchemeCode:   "118778",
		SchemeName:   "Nippon India Small Cap Fund",
		Category:     "Equity - Small Cap",
		NAV:          125.45,
		NAVDate:      "15-01-2024",
		ExpenseRatio: 1.43,
		Returns:      map[string]float64{"3Y": 28.9, "1Y": 32.1, "10Y": 21.4},
	}
	text := RenderSchemeText(rec)

	assert.Contains(t, text, "Scheme Name: Nippon India Small Cap Fund")
	assert.Contains(t, text, "Latest NAV: 125.45")
	assert.Contains(t, text, "NAV Date: 15-01-2024")
	assert.Contains(t, text, "Expense Ratio: 1.43%")

	// Horizons ordered by duration, not lexicographically.
	i1 := strings.Index(text, "1Y Return")
	i3 := strings.Index(text, "3Y Return")
	i10 := strings.Index(text, "10Y Return")
	assert.True(t, i1 < i3 && i3 < i10, "expected 1Y < 3Y < 10Y ordering, got %q", text)

	// Unpopulated fields produce no lines.
	assert.NotContains(t, text, "AUM")
	assert.NotContains(t, text, "Benchmark")

	// Rendering is deterministic.
	assert.Equal(t, text, RenderSchemeText(rec))
}

func TestRenderFactsheetText(t *testing.T) {
	f := &FactsheetRecord{
		SchemeCode: "118778",
		SchemeName: "Nippon India Small Cap Fund",
		Sections:   map[string]string{"Top Holdings": "HDFC Bank 4.2%", "Sector Allocation": "Financials 18%"},
		RawText:    "Portfolio turnover ratio 0.32",
	}
	text := RenderFactsheetText(f)
	assert.Contains(t, text, "Factsheet: Nippon India Small Cap Fund")
	assert.Contains(t, text, "Top Holdings: HDFC Bank 4.2%")
	assert.Contains(t, text, "Portfolio turnover ratio 0.32")
	assert.Equal(t, text, RenderFactsheetText(f))
}
