package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/npbot/npbot/internal/embedding"
	"github.com/npbot/npbot/internal/fund"
)

// Retriever couples the embedder with the index: chunks in, scored chunks
// out. It satisfies the refresh scheduler's indexer contract.
type Retriever struct {
	embedder *embedding.Embedder
	index    *Index
	logger   *slog.Logger
}

// NewRetriever creates a Retriever over an embedder and an index.
func NewRetriever(embedder *embedding.Embedder, index *Index, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// IndexChunks embeds chunk contents and upserts them into the index.
func (r *Retriever) IndexChunks(ctx context.Context, chunks []fund.TextChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := r.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if err := r.index.UpsertChunks(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}

	r.logger.Debug("indexed chunks", "count", len(chunks))
	return nil
}

// RemoveChunks evicts the index points behind superseded chunk IDs.
func (r *Retriever) RemoveChunks(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	if err := r.index.DeletePoints(ctx, chunkIDs); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	r.logger.Debug("removed superseded chunks", "count", len(chunkIDs))
	return nil
}

// Retrieve embeds the query and returns the top k chunks by similarity. An
// empty schemeCode searches across all schemes.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, schemeCode string) ([]ScoredChunk, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.index.Search(ctx, vector, k, schemeCode)
}
