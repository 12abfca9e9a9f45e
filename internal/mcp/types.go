// Package mcp exposes the fund corpus over the Model Context Protocol.
package mcp

import "time"

// AskFundInput defines the input parameters for the ask_fund tool.
type AskFundInput struct {
	// Query is the natural-language question about a scheme.
	Query string `json:"query" jsonschema:"required,description=A question about a Nippon India Mutual Fund scheme"`
}

// AskFundOutput contains the validated answer.
type AskFundOutput struct {
	// Answer is the validated answer text, citing one official source URL.
	Answer string `json:"answer"`
	// SourceURL is the official page the answer is attributed to.
	SourceURL string `json:"source_url,omitempty"`
	// SchemeCode identifies the scheme the answer is about, when resolvable.
	SchemeCode string `json:"scheme_code,omitempty"`
	// Confidence is high, medium, or low.
	Confidence string `json:"confidence,omitempty"`
	// Message carries informational context (e.g. "no data available").
	Message string `json:"message,omitempty"`
}

// GetSchemeInput defines the input parameters for the get_scheme tool.
type GetSchemeInput struct {
	// SchemeCode is the scheme's stable numeric identifier.
	SchemeCode string `json:"scheme_code" jsonschema:"required,description=The scheme code to look up"`
}

// GetSchemeOutput contains the stored record for one scheme.
type GetSchemeOutput struct {
	// Found indicates whether the scheme exists in the store.
	Found bool `json:"found"`
	// SchemeCode echoes the requested code.
	SchemeCode string `json:"scheme_code"`
	// SchemeName is the official scheme name.
	SchemeName string `json:"scheme_name,omitempty"`
	// Category is the scheme category.
	Category string `json:"category,omitempty"`
	// NAV is the latest stored net asset value.
	NAV float64 `json:"nav,omitempty"`
	// NAVDate is the date the NAV was published.
	NAVDate string `json:"nav_date,omitempty"`
	// ValidationStatus is the record's last validation outcome.
	ValidationStatus string `json:"validation_status,omitempty"`
	// SourceURL is the official page the record was scraped from.
	SourceURL string `json:"source_url,omitempty"`
	// LastUpdated is when the record was last written.
	LastUpdated time.Time `json:"last_updated"`
	// Text is the full rendered record.
	Text string `json:"text,omitempty"`
}

// ListSchemesInput defines the input for the list_schemes tool. No
// parameters.
type ListSchemesInput struct{}

// SchemeEntry is one row of the list_schemes output.
type SchemeEntry struct {
	SchemeCode string `json:"scheme_code"`
	SchemeName string `json:"scheme_name"`
	Category   string `json:"category,omitempty"`
}

// ListSchemesOutput contains all known schemes.
type ListSchemesOutput struct {
	Schemes []SchemeEntry `json:"schemes"`
	Count   int           `json:"count"`
}

// RefreshStatusInput defines the input for the refresh_status tool. No
// parameters.
type RefreshStatusInput struct{}

// RunSummary describes the most recent run of one refresh kind.
type RunSummary struct {
	Status    string `json:"status"`
	StartedAt string `json:"started_at"`
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Running   bool   `json:"running"`
}

// RefreshStatusOutput reports corpus size and refresh recency.
type RefreshStatusOutput struct {
	TotalSchemes     int            `json:"total_schemes"`
	TotalFactsheets  int            `json:"total_factsheets"`
	TotalChunks      int            `json:"total_chunks"`
	ValidationCounts map[string]int `json:"validation_counts,omitempty"`
	LastFastRefresh  string         `json:"last_fast_refresh,omitempty"`
	LastFullRefresh  string         `json:"last_full_refresh,omitempty"`
	FastRun          *RunSummary    `json:"fast_run,omitempty"`
	FullRun          *RunSummary    `json:"full_run,omitempty"`
}
