// Package embedding turns chunk text and user queries into vectors via
// OpenAI's embedding API, with batching and rate-limit backoff.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// Model is the OpenAI model used for all embeddings. Index vectors and
	// query vectors must come from the same model.
	Model = "text-embedding-3-small"

	// Dimension is the vector size produced by Model. The search collection
	// is created with this dimension.
	Dimension = 1536

	// DefaultBatchSize keeps one request well under the tokens-per-minute
	// limit for typical fund chunk sizes.
	DefaultBatchSize = 100
)

// Embedder generates embeddings for chunk batches and single queries.
type Embedder struct {
	client    *Client
	batchSize int
}

// NewEmbedder creates an Embedder. A batchSize of 0 uses DefaultBatchSize.
func NewEmbedder(client *Client, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{
		client:    client,
		batchSize: batchSize,
	}
}

// EmbedTexts embeds texts in order, batching requests. The result has one
// vector per input text.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch, err := e.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// EmbedQuery embeds a single user query.
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := e.embedBatchWithRetry(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

// embedBatchWithRetry embeds one batch, retrying rate-limit errors with
// exponential backoff. Other API errors fail immediately.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := e.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: Model,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vectors[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return vectors, err
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// The API returns float64; the vector store takes float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
