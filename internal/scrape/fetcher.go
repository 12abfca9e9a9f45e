package scrape

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/npbot/npbot/internal/fund"
)

// Fetcher is the field-extraction boundary. Implementations return records
// whose FieldSources map attributes every extracted field to the URL it was
// observed on.
type Fetcher interface {
	// ListSchemeURLs discovers the canonical page URL of every scheme.
	ListSchemeURLs(ctx context.Context) ([]string, error)
	// FetchScheme extracts a structured record from a scheme page.
	FetchScheme(ctx context.Context, url string) (*fund.SchemeRecord, error)
	// FetchFactsheet extracts a factsheet for an already-known scheme.
	FetchFactsheet(ctx context.Context, url, schemeCode, schemeName string) (*fund.FactsheetRecord, error)
}

// Default Nippon India MF entry points.
const (
	BaseURL        = "https://mf.nipponindiaim.com"
	SchemesListURL = BaseURL + "/FundsAndPerformance/Pages/Fund-Listing.aspx"
)

// SiteFetcher extracts scheme fields from official pages with pattern
// matching. Pages that render fields through client-side script yield fewer
// fields; every field it does extract carries its source attribution.
type SiteFetcher struct {
	client  *Client
	listURL string
}

// NewSiteFetcher builds a fetcher over the given throttled client.
func NewSiteFetcher(client *Client, listURL string) *SiteFetcher {
	if listURL == "" {
		listURL = SchemesListURL
	}
	return &SiteFetcher{client: client, listURL: listURL}
}

// Client returns the underlying throttled client, shared with the validator
// so all outbound fetches go through one rate limiter.
func (f *SiteFetcher) Client() *Client {
	return f.client
}

var (
	schemeLinkRe = regexp.MustCompile(`href="([^"]*FundsAndPerformance/Pages/[^"]+\.aspx)"`)
	schemeCodeRe = regexp.MustCompile(`(?i)(?:scheme|fund)\s*code[:\s]*(\d{6})`)
	urlCodeRe    = regexp.MustCompile(`/(\d{6})(?:[/.?]|$)`)
	schemeNameRe = regexp.MustCompile(`(?i)(Nippon India [A-Za-z &\-]+? Fund)`)
	navRe        = regexp.MustCompile(`(?i)NAV[^\d₹\n]*₹?\s*([\d,]+\.\d+)`)
	navDateRe    = regexp.MustCompile(`(?i)(?:as on|nav date)[:\s]*(\d{2}[-/]\d{2}[-/]\d{4})`)
	categoryRe   = regexp.MustCompile(`(?i)category[:\s]*([A-Za-z][A-Za-z &\-]+)`)
	aumRe        = regexp.MustCompile(`(?i)AUM[^\d\n]*₹?\s*([\d,]+\.?\d*)\s*Cr`)
	expenseRe    = regexp.MustCompile(`(?i)expense ratio[:\s]*([\d.]+)\s*%`)
	riskRe       = regexp.MustCompile(`(?i)risk(?:ometer| level)?[:\s]*(low|moderate|medium|high)`)
	benchmarkRe  = regexp.MustCompile(`(?i)benchmark[:\s]*([^\n]+)`)
	inceptionRe  = regexp.MustCompile(`(?i)inception date[:\s]*([\d/-]+)`)
	managersRe   = regexp.MustCompile(`(?i)fund manager[s]?[:\s]*([^\n]+)`)
	returnsRe    = regexp.MustCompile(`(?i)(\d{1,2}Y)\s*returns?[:\s]*([\d.]+)\s*%`)
	minInvestRe  = regexp.MustCompile(`(?i)min(?:imum)?\.?\s*investment[:\s]*₹?\s*([\d,]+)`)
	sipMinRe     = regexp.MustCompile(`(?i)SIP[^\d\n]*₹?\s*([\d,]+)`)
)

// ListSchemeURLs scrapes the fund listing page for scheme page links.
func (f *SiteFetcher) ListSchemeURLs(ctx context.Context) ([]string, error) {
	html, err := f.client.FetchHTML(ctx, f.listURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var urls []string
	for _, m := range schemeLinkRe.FindAllStringSubmatch(html, -1) {
		u := fund.NormalizeURL(m[1], f.listURL)
		if u == "" || u == f.listURL || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls, nil
}

// FetchScheme fetches a scheme page and extracts the fields it can find.
// Each extracted field is attributed to url in the record's FieldSources.
func (f *SiteFetcher) FetchScheme(ctx context.Context, url string) (*fund.SchemeRecord, error) {
	text, err := f.client.FetchPage(ctx, url)
	if err != nil {
		return nil, err
	}

	rec := &fund.SchemeRecord{
		SchemeWebpageURL: url,
		FieldSources:     make(map[string]string),
		ValidationStatus: fund.StatusPending,
		LastUpdated:      time.Now().UTC(),
	}
	attr := func(field string) { rec.FieldSources[field] = url }

	rec.SchemeCode = extractSchemeCode(url, text)
	if rec.SchemeCode == "" {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("no scheme code on page")}
	}

	if m := schemeNameRe.FindStringSubmatch(text); m != nil {
		rec.SchemeName = strings.TrimSpace(m[1])
		attr("scheme_name")
	}
	if m := navRe.FindStringSubmatch(text); m != nil {
		rec.NAV = parseAmount(m[1])
		attr("nav")
	}
	if m := navDateRe.FindStringSubmatch(text); m != nil {
		rec.NAVDate = m[1]
		attr("nav_date")
	}
	if m := categoryRe.FindStringSubmatch(text); m != nil {
		rec.Category = strings.TrimSpace(m[1])
		attr("category")
	}
	if m := aumRe.FindStringSubmatch(text); m != nil {
		rec.AUM = parseAmount(m[1])
		attr("aum")
	}
	if m := expenseRe.FindStringSubmatch(text); m != nil {
		rec.ExpenseRatio = parseAmount(m[1])
		attr("expense_ratio")
	}
	if m := riskRe.FindStringSubmatch(text); m != nil {
		rec.RiskLevel = parseRisk(m[1])
		attr("risk_level")
	}
	if m := benchmarkRe.FindStringSubmatch(text); m != nil {
		rec.Benchmark = strings.TrimSpace(m[1])
		attr("benchmark")
	}
	if m := inceptionRe.FindStringSubmatch(text); m != nil {
		rec.InceptionDate = m[1]
		attr("inception_date")
	}
	if m := managersRe.FindStringSubmatch(text); m != nil {
		for _, name := range strings.Split(m[1], ",") {
			if name = strings.TrimSpace(name); name != "" {
				rec.FundManagers = append(rec.FundManagers, name)
			}
		}
		if len(rec.FundManagers) > 0 {
			attr("fund_managers")
		}
	}
	if m := minInvestRe.FindStringSubmatch(text); m != nil {
		rec.MinInvestment = parseAmount(m[1])
		attr("min_investment")
	}
	if m := sipMinRe.FindStringSubmatch(text); m != nil {
		rec.SIPMin = parseAmount(m[1])
		attr("sip_min")
	}
	for _, m := range returnsRe.FindAllStringSubmatch(text, -1) {
		if rec.Returns == nil {
			rec.Returns = make(map[string]float64)
		}
		rec.Returns[strings.ToUpper(m[1])] = parseAmount(m[2])
	}
	if len(rec.Returns) > 0 {
		attr("returns")
	}

	return rec, nil
}

// FetchFactsheet fetches a factsheet page as raw text for chunking.
func (f *SiteFetcher) FetchFactsheet(ctx context.Context, url, schemeCode, schemeName string) (*fund.FactsheetRecord, error) {
	text, err := f.client.FetchPage(ctx, url)
	if err != nil {
		return nil, err
	}
	return &fund.FactsheetRecord{
		SchemeCode:  schemeCode,
		SchemeName:  schemeName,
		SourceURL:   url,
		RawText:     text,
		LastUpdated: time.Now().UTC(),
	}, nil
}

func extractSchemeCode(url, text string) string {
	if m := urlCodeRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	if m := schemeCodeRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseRisk(s string) fund.RiskLevel {
	switch strings.ToLower(s) {
	case "low":
		return fund.RiskLow
	case "moderate", "medium":
		return fund.RiskMedium
	default:
		return fund.RiskHigh
	}
}
