package scrape

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/npbot/npbot/internal/fund"
)

// fakeTransport serves canned bodies by URL without touching the network.
type fakeTransport struct {
	pages  map[string]string
	status int
	calls  int
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	body, ok := f.pages[req.URL.String()]
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	if !ok {
		status = http.StatusNotFound
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func newTestClient(pages map[string]string, status int) (*Client, *fakeTransport) {
	ft := &fakeTransport{pages: pages, status: status}
	c := NewClient(time.Second, rate.NewLimiter(rate.Inf, 0))
	c.http.Transport = ft
	return c, ft
}

const schemePage = `<!DOCTYPE html>
<html><head><title>Nippon India Small Cap Fund</title>
<script>var junk = "script bodies must not leak into text";</script></head>
<body>
<h1>Nippon India Small Cap Fund</h1>
<div>Scheme Code: 118778</div>
<div>Category: Equity - Small Cap</div>
<div>NAV as on 15-01-2024</div>
<div>Latest NAV ₹ 125.45</div>
<div>AUM: ₹ 43,816.59 Cr</div>
<div>Expense Ratio: 1.43 %</div>
<div>Risk Level: High</div>
<div>Benchmark: Nifty Smallcap 250 TRI</div>
<div>Fund Managers: Samir Rachh, Kinjal Desai</div>
<div>Minimum Investment: ₹ 5,000</div>
<div>SIP Minimum ₹ 100</div>
<div>1Y Returns: 32.10 %</div>
<div>3Y Returns: 28.90 %</div>
</body></html>`

const schemeURL = "https://mf.nipponindiaim.com/FundsAndPerformance/Pages/NipponIndia-Small-Cap-Fund.aspx"

func TestFetchPage_StripsMarkup(t *testing.T) {
	c, _ := newTestClient(map[string]string{schemeURL: schemePage}, 0)

	text, err := c.FetchPage(context.Background(), schemeURL)
	require.NoError(t, err)
	assert.Contains(t, text, "Latest NAV ₹ 125.45")
	assert.NotContains(t, text, "<div>")
	assert.NotContains(t, text, "script bodies must not leak")
}

func TestFetchPage_RejectsOffDomainBeforeRequest(t *testing.T) {
	c, ft := newTestClient(nil, 0)

	_, err := c.FetchPage(context.Background(), "https://example.com/page")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Zero(t, ft.calls, "off-domain URL must never be requested")
}

func TestFetchPage_NonOKStatusIsFetchError(t *testing.T) {
	c, _ := newTestClient(map[string]string{schemeURL: "oops"}, http.StatusServiceUnavailable)

	_, err := c.FetchPage(context.Background(), schemeURL)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schemeURL, fe.URL)
}

func TestClient_ThrottleSpacesRequests(t *testing.T) {
	c, _ := newTestClient(map[string]string{schemeURL: schemePage}, 0)
	c.limiter = rate.NewLimiter(rate.Every(50*time.Millisecond), 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.FetchPage(context.Background(), schemeURL)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond, "requests must be spaced by the limiter")
}

func TestFetchScheme_ExtractsAttributedFields(t *testing.T) {
	c, _ := newTestClient(map[string]string{schemeURL: schemePage}, 0)
	f := NewSiteFetcher(c, "")

	rec, err := f.FetchScheme(context.Background(), schemeURL)
	require.NoError(t, err)

	assert.Equal(t, "118778", rec.SchemeCode)
	assert.Equal(t, "Nippon India Small Cap Fund", rec.SchemeName)
	assert.Equal(t, 125.45, rec.NAV)
	assert.Equal(t, "15-01-2024", rec.NAVDate)
	assert.Equal(t, 43816.59, rec.AUM)
	assert.Equal(t, 1.43, rec.ExpenseRatio)
	assert.Equal(t, fund.RiskHigh, rec.RiskLevel)
	assert.Equal(t, []string{"Samir Rachh", "Kinjal Desai"}, rec.FundManagers)
	assert.Equal(t, 5000.0, rec.MinInvestment)
	assert.Equal(t, 32.10, rec.Returns["1Y"])
	assert.Equal(t, 28.90, rec.Returns["3Y"])

	// Every extracted field must be attributed to the page it came from.
	for _, field := range rec.AttributedFields() {
		assert.Equal(t, schemeURL, rec.FieldSources[field], "field %q lacks attribution", field)
	}
	assert.Equal(t, fund.StatusPending, rec.ValidationStatus)
}

func TestFetchScheme_NoSchemeCodeFails(t *testing.T) {
	url := "https://mf.nipponindiaim.com/FundsAndPerformance/Pages/Unknown.aspx"
	c, _ := newTestClient(map[string]string{url: "<html><body>Nothing useful here</body></html>"}, 0)
	f := NewSiteFetcher(c, "")

	_, err := f.FetchScheme(context.Background(), url)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
}

func TestListSchemeURLs(t *testing.T) {
	listing := `<html><body>
<a href="/FundsAndPerformance/Pages/NipponIndia-Small-Cap-Fund.aspx">Small Cap</a>
<a href="/FundsAndPerformance/Pages/NipponIndia-Growth-Fund.aspx">Growth</a>
<a href="/FundsAndPerformance/Pages/NipponIndia-Small-Cap-Fund.aspx">Small Cap again</a>
<a href="https://evil.example.com/FundsAndPerformance/Pages/Fake.aspx">Fake</a>
</body></html>`
	c, _ := newTestClient(map[string]string{SchemesListURL: listing}, 0)
	f := NewSiteFetcher(c, "")

	urls, err := f.ListSchemeURLs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://mf.nipponindiaim.com/FundsAndPerformance/Pages/NipponIndia-Growth-Fund.aspx",
		"https://mf.nipponindiaim.com/FundsAndPerformance/Pages/NipponIndia-Small-Cap-Fund.aspx",
	}, urls)
}

func TestFetchFactsheet(t *testing.T) {
	url := "https://mf.nipponindiaim.com/factsheets/small-cap.aspx"
	c, _ := newTestClient(map[string]string{url: "<html><body>Top Holdings: HDFC Bank 4.2%</body></html>"}, 0)
	f := NewSiteFetcher(c, "")

	fs, err := f.FetchFactsheet(context.Background(), url, "118778", "Nippon India Small Cap Fund")
	require.NoError(t, err)
	assert.Equal(t, "118778", fs.SchemeCode)
	assert.Equal(t, url, fs.SourceURL)
	assert.Contains(t, fs.RawText, "Top Holdings")
}
