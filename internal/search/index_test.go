//go:build integration

package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npbot/npbot/internal/embedding"
	"github.com/npbot/npbot/internal/fund"
)

// setupTestIndex connects to a local Qdrant and ensures the collection
// exists. Skips when Qdrant is not running.
func setupTestIndex(t *testing.T) *Index {
	idx, err := NewIndex("localhost", 6334)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	err = idx.EnsureCollection(context.Background())
	require.NoError(t, err, "Failed to ensure collection")

	return idx
}

func testVector(seed float32) []float32 {
	vec := make([]float32, embedding.Dimension)
	for i := range vec {
		vec[i] = seed
	}
	vec[0] = 1
	return vec
}

func testChunk(id, code, content string) fund.TextChunk {
	return fund.TextChunk{
		ChunkID:    id,
		SchemeCode: code,
		ChunkType:  fund.ChunkScheme,
		Content:    content,
		SourceURL:  "https://mf.nipponindiaim.com/FundsAndPerformance/Pages/Test.aspx",
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func TestChunkSearchRoundTrip(t *testing.T) {
	idx := setupTestIndex(t)
	defer idx.Close()

	ctx := context.Background()

	chunks := []fund.TextChunk{
		testChunk("roundtrip-a", "100001", "Scheme Name: Nippon India Small Cap Fund\nLatest NAV: 125.45"),
		testChunk("roundtrip-b", "100002", "Scheme Name: Nippon India Growth Fund\nLatest NAV: 3210.50"),
	}
	vectors := [][]float32{testVector(0.01), testVector(0.9)}

	err := idx.UpsertChunks(ctx, chunks, vectors)
	require.NoError(t, err, "Failed to upsert chunks")

	results, err := idx.Search(ctx, testVector(0.01), 2, "")
	require.NoError(t, err, "Failed to search chunks")
	require.NotEmpty(t, results)

	top := results[0]
	assert.Equal(t, "roundtrip-a", top.Chunk.ChunkID)
	assert.Equal(t, "100001", top.Chunk.SchemeCode)
	assert.Equal(t, chunks[0].Content, top.Chunk.Content)
	assert.Equal(t, chunks[0].SourceURL, top.Chunk.SourceURL)
	assert.Greater(t, top.Score, 0.0)
}

func TestSearchSchemeFilter(t *testing.T) {
	idx := setupTestIndex(t)
	defer idx.Close()

	ctx := context.Background()

	chunks := []fund.TextChunk{
		testChunk("filter-a", "200001", "Category: Equity - Small Cap"),
		testChunk("filter-b", "200002", "Category: Equity - Large Cap"),
	}
	err := idx.UpsertChunks(ctx, chunks, [][]float32{testVector(0.1), testVector(0.1)})
	require.NoError(t, err)

	results, err := idx.Search(ctx, testVector(0.1), 10, "200001")
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "200001", r.Chunk.SchemeCode)
	}
}

func TestUpsertIsIdempotentPerChunkID(t *testing.T) {
	idx := setupTestIndex(t)
	defer idx.Close()

	ctx := context.Background()

	chunk := testChunk("idempotent-a", "300001", "Latest NAV: 50.00")
	vecs := [][]float32{testVector(0.5)}

	require.NoError(t, idx.UpsertChunks(ctx, []fund.TextChunk{chunk}, vecs))
	before, err := idx.PointsCount(ctx)
	require.NoError(t, err)

	// Same chunk ID maps to the same point; re-indexing must not duplicate.
	require.NoError(t, idx.UpsertChunks(ctx, []fund.TextChunk{chunk}, vecs))
	after, err := idx.PointsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDeletePointsEvictsSupersededChunks(t *testing.T) {
	idx := setupTestIndex(t)
	defer idx.Close()

	ctx := context.Background()

	chunks := []fund.TextChunk{
		testChunk("evict-a", "500001", "Latest NAV: 99.00"),
		testChunk("evict-b", "500001", "Latest NAV: 101.00"),
	}
	require.NoError(t, idx.UpsertChunks(ctx, chunks, [][]float32{testVector(0.3), testVector(0.3)}))

	require.NoError(t, idx.DeletePoints(ctx, []string{"evict-a"}))

	results, err := idx.Search(ctx, testVector(0.3), 10, "500001")
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "evict-a", r.Chunk.ChunkID, "deleted point must not be retrievable")
	}

	// Deleting an ID that was never indexed is not an error.
	require.NoError(t, idx.DeletePoints(ctx, []string{"never-indexed"}))
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	idx := setupTestIndex(t)
	defer idx.Close()

	chunk := testChunk("dims-a", "400001", "Latest NAV: 10.00")
	err := idx.UpsertChunks(context.Background(), []fund.TextChunk{chunk}, [][]float32{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
