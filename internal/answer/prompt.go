package answer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/npbot/npbot/internal/fund"
	"github.com/npbot/npbot/internal/search"
)

// fakeDataMarkers are case-insensitive substrings that mark a candidate as
// fabricated rather than grounded in scraped data.
var fakeDataMarkers = []string{
	"demo",
	"placeholder",
	"example",
	"test data",
	"lorem ipsum",
	"n/a - sample",
}

var urlRe = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// buildPrompt constructs the grounded prompt: the retrieved chunks with
// their source URLs, then the query with answering rules.
func buildPrompt(query string, chunks []search.ScoredChunk, strict bool) string {
	var b strings.Builder

	b.WriteString("You are a factual assistant for Nippon India Mutual Fund scheme data.\n")
	b.WriteString("Answer the question using ONLY the context below. Do not use outside knowledge.\n\n")
	b.WriteString("Context:\n")
	for i, sc := range chunks {
		fmt.Fprintf(&b, "--- Source %d (%s) ---\n", i+1, sc.Chunk.SourceURL)
		b.WriteString(sc.Chunk.Content)
		b.WriteString("\n")
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Answer in 2-3 sentences.\n")
	b.WriteString("- Do not give investment advice or recommendations.\n")
	b.WriteString("- Cite exactly one source URL, copied verbatim from the context above.\n")
	b.WriteString("- If the context does not contain the answer, say so.\n")
	if strict {
		b.WriteString("- Your previous answer failed validation. Include EXACTLY ONE URL,\n")
		b.WriteString("  and it must be one of the source URLs shown above, character for character.\n")
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", query)

	return b.String()
}

// extractURLs returns the distinct URLs in text, trailing punctuation
// stripped, in order of first appearance.
func extractURLs(text string) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, raw := range urlRe.FindAllString(text, -1) {
		u := strings.TrimRight(raw, ".,;:!?")
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// validateCandidate enforces the answer invariants: exactly one distinct URL,
// its domain on the official allowlist, and no fake-data markers. Returns the
// URL on success.
func validateCandidate(text string) (string, error) {
	urls := extractURLs(text)
	if len(urls) == 0 {
		return "", fmt.Errorf("no source URL in answer")
	}
	if len(urls) > 1 {
		return "", fmt.Errorf("answer cites %d distinct URLs, want 1", len(urls))
	}
	if !fund.ValidSourceURL(urls[0]) {
		return "", fmt.Errorf("source URL %q not on official allowlist", urls[0])
	}

	lower := strings.ToLower(text)
	for _, marker := range fakeDataMarkers {
		if strings.Contains(lower, marker) {
			return "", fmt.Errorf("answer contains fake-data marker %q", marker)
		}
	}

	return urls[0], nil
}
