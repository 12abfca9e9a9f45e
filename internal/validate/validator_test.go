package validate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/npbot/npbot/internal/fund"
)

type stubFetcher struct {
	page string
	err  error
}

func (s *stubFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	return s.page, s.err
}

func record(nav float64) *fund.SchemeRecord {
	return &fund.SchemeRecord{
		SchemeCode:       "118778",
		SchemeName:       "Nippon India Small Cap Fund",
		Category:         "Equity - Small Cap",
		NAV:              nav,
		SchemeWebpageURL: "https://mf.nipponindiaim.com/FundsAndPerformance/Pages/NipponIndia-Small-Cap-Fund.aspx",
	}
}

func page(nav string) string {
	return fmt.Sprintf("NIPPON INDIA SMALL CAP FUND\nCategory: Equity - Small Cap\nLatest NAV: %s", nav)
}

func TestValidateScheme(t *testing.T) {
	tests := []struct {
		name string
		rec  *fund.SchemeRecord
		page string
		want fund.ValidationStatus
	}{
		{
			name: "all checks pass",
			rec:  record(125.45),
			page: page("125.45"),
			want: fund.StatusValid,
		},
		{
			name: "nav within one percent is still valid",
			rec:  record(125.45),
			page: page("126.00"), // ~0.44% off
			want: fund.StatusValid,
		},
		{
			name: "nav outside tolerance is partial not invalid",
			rec:  record(125.45),
			page: page("130.00"), // ~3.5% off
			want: fund.StatusPartial,
		},
		{
			name: "no nav on page is partial",
			rec:  record(125.45),
			page: "NIPPON INDIA SMALL CAP FUND\nCategory: Equity - Small Cap",
			want: fund.StatusPartial,
		},
		{
			name: "name missing is invalid",
			rec:  record(125.45),
			page: "Some Other Fund\nCategory: Equity - Small Cap\nLatest NAV: 125.45",
			want: fund.StatusInvalid,
		},
		{
			name: "category missing is invalid",
			rec:  record(125.45),
			page: "NIPPON INDIA SMALL CAP FUND\nLatest NAV: 125.45",
			want: fund.StatusInvalid,
		},
		{
			name: "record without nav skips nav check",
			rec:  record(0),
			page: "NIPPON INDIA SMALL CAP FUND\nCategory: Equity - Small Cap",
			want: fund.StatusValid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(&stubFetcher{page: tt.page}, nil)
			assert.Equal(t, tt.want, v.ValidateScheme(context.Background(), tt.rec))
		})
	}
}

func TestValidateScheme_FetchFailureIsError(t *testing.T) {
	v := New(&stubFetcher{err: errors.New("connection refused")}, nil)
	got := v.ValidateScheme(context.Background(), record(125.45))
	assert.Equal(t, fund.StatusError, got)
}

// The tolerance boundary itself: exactly 1% difference is not within tolerance.
func TestNavTolerance_Boundary(t *testing.T) {
	assert.True(t, navWithinTolerance(100.0, "NAV: 100.99"))
	assert.False(t, navWithinTolerance(100.0, "NAV: 101.02"))
	assert.True(t, navWithinTolerance(100.0, "NAV: 99.10"))
	assert.False(t, navWithinTolerance(100.0, "NAV: 98.00"))
}
