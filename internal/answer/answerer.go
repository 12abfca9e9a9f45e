// Package answer turns user queries into validated, source-attributed
// answers: retrieve chunks, prompt the model, then verify the result against
// the attribution invariants before anything reaches the caller.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/npbot/npbot/internal/fund"
	"github.com/npbot/npbot/internal/llm"
	"github.com/npbot/npbot/internal/search"
)

const (
	// DefaultTopK is how many chunks are retrieved per query.
	DefaultTopK = 3

	// highScoreThreshold is the similarity above which a valid record can
	// yield a high-confidence answer.
	highScoreThreshold = 0.75

	// mediumScoreThreshold is the similarity above which an answer is at
	// least medium confidence.
	mediumScoreThreshold = 0.45
)

// Answer is a validated response to one query.
type Answer struct {
	Text       string          `json:"text"`
	SourceURL  string          `json:"source_url"`
	SchemeCode string          `json:"scheme_code,omitempty"`
	Confidence fund.Confidence `json:"confidence"`
}

// ChunkRetriever returns the top k chunks for a query. The search layer
// implements this.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, query string, k int, schemeCode string) ([]search.ScoredChunk, error)
}

// RecordReader looks up the canonical record behind a chunk.
type RecordReader interface {
	GetScheme(code string) (*fund.SchemeRecord, error)
}

// Config carries the answerer's collaborators.
type Config struct {
	Retriever ChunkRetriever
	Records   RecordReader
	Model     llm.Client // optional, nil runs fallback-only
	TopK      int
	Logger    *slog.Logger
}

// Answerer runs the retrieval-and-generation pipeline.
type Answerer struct {
	retriever ChunkRetriever
	records   RecordReader
	model     llm.Client
	topK      int
	logger    *slog.Logger
}

// New creates an Answerer from cfg.
func New(cfg Config) *Answerer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Answerer{
		retriever: cfg.Retriever,
		records:   cfg.Records,
		model:     cfg.Model,
		topK:      topK,
		logger:    logger,
	}
}

// AnswerQuery answers one query. It returns ErrInvalidQuery for blank input,
// ErrNoData when no eligible chunks exist, and ErrAnswerIntegrity when no
// candidate survives validation. Model failures never surface directly; they
// degrade to the deterministic fallback.
func (a *Answerer) AnswerQuery(ctx context.Context, query string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}

	scored, err := a.retriever.Retrieve(ctx, query, a.topK, "")
	if err != nil {
		return nil, fmt.Errorf("retrieve chunks: %w", err)
	}

	eligible, records := a.filterEligible(scored)
	if len(eligible) == 0 {
		if len(scored) > 0 {
			// The corpus matched but every backing record is marked
			// invalid or error, which is a different situation than an
			// empty deployment.
			a.logger.Warn("all retrieved chunks excluded by validation status",
				"query", query, "retrieved", len(scored))
			return nil, fmt.Errorf("all matching schemes failed validation: %w", ErrNoData)
		}
		return nil, ErrNoData
	}

	top := eligible[0]
	topRecord := records[top.Chunk.SchemeCode]

	text, sourceURL, usedFallback, err := a.generate(ctx, query, eligible, topRecord)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Text:       text,
		SourceURL:  sourceURL,
		SchemeCode: top.Chunk.SchemeCode,
		Confidence: deriveConfidence(topRecord, top.Score, usedFallback),
	}, nil
}

// filterEligible drops chunks whose canonical record is marked invalid or
// error. Chunks without a stored record stay in, at reduced confidence.
func (a *Answerer) filterEligible(scored []search.ScoredChunk) ([]search.ScoredChunk, map[string]*fund.SchemeRecord) {
	records := make(map[string]*fund.SchemeRecord)
	eligible := make([]search.ScoredChunk, 0, len(scored))

	for _, sc := range scored {
		code := sc.Chunk.SchemeCode
		rec, ok := records[code]
		if !ok {
			var err error
			rec, err = a.records.GetScheme(code)
			if err != nil {
				a.logger.Warn("could not read scheme record", "scheme", code, "error", err)
			}
			records[code] = rec
		}
		if rec != nil && !rec.ValidationStatus.Eligible() {
			a.logger.Debug("chunk excluded by validation status",
				"scheme", code, "status", rec.ValidationStatus)
			continue
		}
		eligible = append(eligible, sc)
	}

	return eligible, records
}

// generate runs the two-branch pipeline: model generation with one strict
// retry, then the deterministic fallback. Both branches pass through the
// same validation.
func (a *Answerer) generate(ctx context.Context, query string, chunks []search.ScoredChunk, topRecord *fund.SchemeRecord) (text, sourceURL string, usedFallback bool, err error) {
	if a.model != nil {
		for _, strict := range []bool{false, true} {
			candidate, err := a.model.Complete(ctx, buildPrompt(query, chunks, strict))
			if err != nil {
				a.logger.Warn("model completion failed, using fallback", "error", err)
				break
			}
			url, err := validateCandidate(candidate)
			if err == nil {
				return candidate, url, false, nil
			}
			a.logger.Warn("generated answer failed validation", "strict", strict, "error", err)
		}
	}

	fallback := fallbackText(topRecord, chunks[0].Chunk)
	url, err := validateCandidate(fallback)
	if err != nil {
		a.logger.Error("fallback answer failed validation", "error", err)
		return "", "", false, ErrAnswerIntegrity
	}
	return fallback, url, true, nil
}

// fallbackText synthesizes an answer from the canonical record, or from the
// chunk itself when no record is stored. Rendered chunk content carries no
// URLs, so appending the source keeps the one-URL invariant.
func fallbackText(rec *fund.SchemeRecord, chunk fund.TextChunk) string {
	if rec != nil && rec.NAV != 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "The NAV of %s (scheme code %s) is %.2f", rec.SchemeName, rec.SchemeCode, rec.NAV)
		if rec.NAVDate != "" {
			fmt.Fprintf(&b, " as of %s", rec.NAVDate)
		}
		b.WriteString(".")
		if rec.Category != "" {
			fmt.Fprintf(&b, " It is a %s scheme.", rec.Category)
		}
		fmt.Fprintf(&b, " Source: %s", chunk.SourceURL)
		return b.String()
	}

	excerpt := chunk.Content
	if i := strings.IndexByte(excerpt, '\n'); i > 0 {
		if j := strings.IndexByte(excerpt[i+1:], '\n'); j > 0 {
			excerpt = excerpt[:i+1+j]
		}
	}
	return fmt.Sprintf("According to the latest available data: %s. Source: %s",
		strings.ReplaceAll(strings.TrimSpace(excerpt), "\n", "; "), chunk.SourceURL)
}

// deriveConfidence maps retrieval strength and record status to a confidence
// level. A fallback answer is never high confidence.
func deriveConfidence(rec *fund.SchemeRecord, score float64, usedFallback bool) fund.Confidence {
	level := fund.ConfidenceLow
	switch {
	case rec != nil && rec.ValidationStatus == fund.StatusValid && score >= highScoreThreshold:
		level = fund.ConfidenceHigh
	case rec != nil && rec.ValidationStatus == fund.StatusPartial:
		level = fund.ConfidenceMedium
	case score >= mediumScoreThreshold:
		level = fund.ConfidenceMedium
	}
	if usedFallback && level == fund.ConfidenceHigh {
		level = fund.ConfidenceMedium
	}
	return level
}
