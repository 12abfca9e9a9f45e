package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/npbot/npbot/internal/fund"
)

const (
	// ChunkWindow is the target chunk size in characters of the underlying text.
	ChunkWindow = 1000
	// ChunkOverlap is the character overlap between neighboring chunks.
	ChunkOverlap = 200
)

// splitText deterministically splits text into overlapping windows. A window
// that would end mid-line is pulled back to the last newline inside it, so a
// "Field: value" line and its attribution are never torn across two chunks.
func splitText(text string) []string {
	if text == "" {
		return nil
	}
	var windows []string
	start := 0
	for start < len(text) {
		end := start + ChunkWindow
		if end >= len(text) {
			windows = append(windows, text[start:])
			break
		}
		if i := strings.LastIndexByte(text[start:end], '\n'); i > 0 {
			end = start + i + 1
		}
		windows = append(windows, text[start:end])
		next := end - ChunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}
	return windows
}

// chunkID derives a stable content hash for one window. Re-deriving chunks
// from identical input yields identical IDs.
func chunkID(schemeCode string, chunkType fund.ChunkType, sourceURL, content string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%s\x00%s", schemeCode, chunkType, sourceURL, content)))
	return hex.EncodeToString(h[:])
}
