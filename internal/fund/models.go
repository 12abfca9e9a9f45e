// Package fund defines the domain records for mutual-fund scheme data:
// schemes, factsheets, derived text chunks, and the storage-wide metadata index.
package fund

import "time"

// SchemeRecord is the canonical stored representation of one mutual-fund scheme.
// Every populated fact field must have a matching FieldSources entry pointing at
// an allowlisted official URL; the store rejects records that violate this.
type SchemeRecord struct {
	SchemeCode       string             `json:"scheme_code"`
	SchemeName       string             `json:"scheme_name"`
	Category         string             `json:"category,omitempty"`
	NAV              float64            `json:"nav,omitempty"`
	NAVDate          string             `json:"nav_date,omitempty"`
	AUM              float64            `json:"aum,omitempty"`
	ExpenseRatio     float64            `json:"expense_ratio,omitempty"`
	Benchmark        string             `json:"benchmark,omitempty"`
	InceptionDate    string             `json:"inception_date,omitempty"`
	FundManagers     []string           `json:"fund_managers,omitempty"`
	RiskLevel        RiskLevel          `json:"risk_level,omitempty"`
	MinInvestment    float64            `json:"min_investment,omitempty"`
	SIPMin           float64            `json:"sip_min,omitempty"`
	Returns          map[string]float64 `json:"returns,omitempty"`
	FactsheetURL     string             `json:"factsheet_url,omitempty"`
	SchemeWebpageURL string             `json:"scheme_webpage_url"`
	FieldSources     map[string]string  `json:"field_sources"`
	ValidationStatus ValidationStatus   `json:"validation_status"`
	LastUpdated      time.Time          `json:"last_updated"`
}

// AttributedFields returns the names of populated fact fields that require a
// FieldSources entry. Structural fields (scheme_code, the URLs themselves,
// validation bookkeeping) are excluded.
func (r *SchemeRecord) AttributedFields() []string {
	var fields []string
	add := func(name string, populated bool) {
		if populated {
			fields = append(fields, name)
		}
	}
	add("scheme_name", r.SchemeName != "")
	add("category", r.Category != "")
	add("nav", r.NAV != 0)
	add("nav_date", r.NAVDate != "")
	add("aum", r.AUM != 0)
	add("expense_ratio", r.ExpenseRatio != 0)
	add("benchmark", r.Benchmark != "")
	add("inception_date", r.InceptionDate != "")
	add("fund_managers", len(r.FundManagers) > 0)
	add("risk_level", r.RiskLevel != "")
	add("min_investment", r.MinInvestment != 0)
	add("sip_min", r.SIPMin != 0)
	add("returns", len(r.Returns) > 0)
	return fields
}

// FactsheetRecord mirrors performance and portfolio detail for one scheme.
// It is created and refreshed alongside the scheme's full refresh.
type FactsheetRecord struct {
	SchemeCode  string            `json:"scheme_code"`
	SchemeName  string            `json:"scheme_name"`
	SourceURL   string            `json:"source_url"`
	Sections    map[string]string `json:"sections,omitempty"`
	RawText     string            `json:"raw_text"`
	LastUpdated time.Time         `json:"last_updated"`
}

// ChunkType distinguishes which record a text chunk was derived from.
type ChunkType string

const (
	ChunkScheme    ChunkType = "scheme"
	ChunkFactsheet ChunkType = "factsheet"
)

// TextChunk is a bounded slice of a record's rendered text, produced for
// retrieval. ChunkID is a content hash, stable across re-derivation.
type TextChunk struct {
	ChunkID    string    `json:"chunk_id"`
	SchemeCode string    `json:"scheme_code"`
	ChunkType  ChunkType `json:"chunk_type"`
	Content    string    `json:"content"`
	SourceURL  string    `json:"source_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// SchemeSummary is the per-scheme entry kept in the metadata index.
type SchemeSummary struct {
	SchemeCode string `json:"scheme_code"`
	SchemeName string `json:"scheme_name"`
	Category   string `json:"category,omitempty"`
	SourceURL  string `json:"source_url"`
}

// StorageMetadata is the process-wide index over the store: aggregate counts,
// the known scheme codes, and the last refresh timestamps per refresh kind.
// It is rebuilt/merged on every write and read-mostly otherwise.
type StorageMetadata struct {
	TotalSchemes     int                      `json:"total_schemes"`
	TotalFactsheets  int                      `json:"total_factsheets"`
	TotalChunks      int                      `json:"total_chunks"`
	Schemes          []SchemeSummary          `json:"schemes"`
	LastFullRefresh  *time.Time               `json:"last_full_refresh,omitempty"`
	LastFastRefresh  *time.Time               `json:"last_fast_refresh,omitempty"`
	ValidationCounts map[ValidationStatus]int `json:"validation_counts,omitempty"`
}
