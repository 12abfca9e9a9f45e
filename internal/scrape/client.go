// Package scrape talks to the official mutual-fund website: a throttled HTTP
// client plus the field-extraction boundary the rest of the system consumes.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/npbot/npbot/internal/fund"
)

const (
	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 30 * time.Second

	// userAgent mirrors a desktop browser; the site rejects bare Go clients.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// maxBodyBytes caps how much of a page is read.
	maxBodyBytes = 4 << 20
)

// Client is the throttled HTTP client shared by every scraping call site.
// The limiter is process-wide state: all outbound requests to the source
// website pass through it, spaced at least one second apart by default.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a client with the given request timeout. A nil limiter
// gets the default 1 request/second throttle; tests pass rate.NewLimiter
// (rate.Inf, 0) to disable throttling.
func NewClient(timeout time.Duration, limiter *rate.Limiter) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Second), 1)
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// FetchPage fetches url and returns the page text with tags stripped.
func (c *Client) FetchPage(ctx context.Context, url string) (string, error) {
	html, err := c.FetchHTML(ctx, url)
	if err != nil {
		return "", err
	}
	return stripTags(html), nil
}

// FetchHTML fetches url and returns the raw page body. Only allowlisted
// official URLs are ever fetched; anything else fails before a request is
// made.
func (c *Client) FetchHTML(ctx context.Context, url string) (string, error) {
	if !fund.ValidSourceURL(url) {
		return "", &FetchError{URL: url, Err: fmt.Errorf("not an official domain")}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &FetchError{URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	return string(body), nil
}

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]+>`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
)

// stripTags reduces an HTML page to its visible text, preserving line breaks
// so field labels keep their values on the same line.
func stripTags(html string) string {
	text := scriptRe.ReplaceAllString(html, " ")
	text = tagRe.ReplaceAllString(text, "\n")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = spaceRe.ReplaceAllString(text, " ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
