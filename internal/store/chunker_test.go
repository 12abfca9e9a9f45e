package store

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npbot/npbot/internal/fund"
)

func TestSplitText_ShortTextSingleWindow(t *testing.T) {
	windows := splitText("Scheme Name: Nippon India Small Cap Fund\nLatest NAV: 125.45")
	require.Len(t, windows, 1)
	assert.Contains(t, windows[0], "125.45")
}

func TestSplitText_Empty(t *testing.T) {
	assert.Nil(t, splitText(""))
}

func TestSplitText_WindowAndOverlap(t *testing.T) {
	// 40 lines of ~60 chars each, ~2400 chars total.
	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "Field%02d: value value value value value value value value\n", i)
	}
	text := b.String()

	windows := splitText(text)
	require.Greater(t, len(windows), 1)

	for i, w := range windows {
		assert.LessOrEqual(t, len(w), ChunkWindow, "window %d exceeds target size", i)
	}

	// Neighboring windows overlap, and every character of the input is covered.
	joined := windows[0]
	for i := 1; i < len(windows); i++ {
		overlapLen := ChunkOverlap
		if overlapLen > len(windows[i]) {
			overlapLen = len(windows[i])
		}
		// The next window starts inside the previous one.
		assert.True(t, strings.HasSuffix(joined, windows[i][:overlapLen]) ||
			strings.Contains(text, windows[i]), "window %d not contiguous", i)
		joined += windows[i][overlapLen:]
	}
	assert.Equal(t, text, joined)
}

func TestSplitText_NeverTearsFieldLine(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "Expense Ratio %02d: 1.43%% sourced from the official factsheet page\n", i)
	}
	windows := splitText(b.String())
	require.Greater(t, len(windows), 1)

	// Every window except possibly the last ends on a line boundary, so no
	// field/value line is split across two chunks.
	for i, w := range windows[:len(windows)-1] {
		assert.True(t, strings.HasSuffix(w, "\n"), "window %d tears a field line: ...%q", i, w[len(w)-20:])
	}
}

func TestSplitText_NoNewlineFallsBackToHardCut(t *testing.T) {
	text := strings.Repeat("x", 2500)
	windows := splitText(text)
	require.Greater(t, len(windows), 1)
	assert.Len(t, windows[0], ChunkWindow)
}

func TestChunkID_StableAndContentSensitive(t *testing.T) {
	a := chunkID("118778", fund.ChunkScheme, "https://mf.nipponindiaim.com/x", "content")
	b := chunkID("118778", fund.ChunkScheme, "https://mf.nipponindiaim.com/x", "content")
	c := chunkID("118778", fund.ChunkScheme, "https://mf.nipponindiaim.com/x", "other content")
	d := chunkID("118778", fund.ChunkFactsheet, "https://mf.nipponindiaim.com/x", "content")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Len(t, a, 64)
}
