// Package validate cross-checks stored scheme records against the live
// official page and assigns each record a validation status.
package validate

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/npbot/npbot/internal/fund"
)

// NAVTolerance is the maximum relative difference between the stored NAV and
// a freshly observed one before the record is flagged stale. Fixed policy,
// not configuration.
const NAVTolerance = 0.01

// PageFetcher fetches the text of an official page. The scrape client
// implements this; tests substitute a stub.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// Validator re-fetches scheme pages and compares stored values against what
// the page currently shows.
type Validator struct {
	fetcher PageFetcher
	logger  *slog.Logger
}

// New creates a validator over the given page fetcher.
func New(fetcher PageFetcher, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{fetcher: fetcher, logger: logger}
}

var navPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)NAV[^\d\n]*?([\d,]+\.\d+)`),
	regexp.MustCompile(`(?i)net asset value[^\d\n]*?([\d,]+\.\d+)`),
}

// ValidateScheme re-fetches the record's canonical page and checks the scheme
// name (case-insensitive substring), NAV (within NAVTolerance of any NAV
// shown), and category (present on the page). A fetch failure yields
// StatusError, which is distinct from a genuine mismatch.
func (v *Validator) ValidateScheme(ctx context.Context, rec *fund.SchemeRecord) fund.ValidationStatus {
	page, err := v.fetcher.FetchPage(ctx, rec.SchemeWebpageURL)
	if err != nil {
		v.logger.Warn("validation fetch failed", "scheme", rec.SchemeCode, "error", err)
		return fund.StatusError
	}
	pageLower := strings.ToLower(page)

	nameOK := strings.Contains(pageLower, strings.ToLower(rec.SchemeName))
	categoryOK := rec.Category == "" || strings.Contains(pageLower, strings.ToLower(rec.Category))
	// A page with no recognizable NAV fails this check the same way an
	// out-of-tolerance one does: the stored value counts as stale, not
	// wrong, so the record lands on partial rather than invalid.
	navOK := rec.NAV == 0 || navWithinTolerance(rec.NAV, page)

	switch {
	case nameOK && categoryOK && navOK:
		return fund.StatusValid
	case nameOK && categoryOK:
		// Name and category check out; a NAV outside tolerance means the
		// stored value is likely stale, not wrong.
		return fund.StatusPartial
	default:
		return fund.StatusInvalid
	}
}

// navWithinTolerance reports whether any NAV-looking value on the page is
// within the relative tolerance of the stored value.
func navWithinTolerance(stored float64, page string) bool {
	for _, re := range navPatterns {
		for _, m := range re.FindAllStringSubmatch(page, -1) {
			observed, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err != nil || observed == 0 {
				continue
			}
			max := stored
			if observed > max {
				max = observed
			}
			if abs(stored-observed)/max < NAVTolerance {
				return true
			}
		}
	}
	return false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
