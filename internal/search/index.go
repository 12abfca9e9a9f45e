// Package search maintains the vector index over fund chunks and answers
// similarity queries against it.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/npbot/npbot/internal/embedding"
	"github.com/npbot/npbot/internal/fund"
)

// CollectionName is the single Qdrant collection holding all fund chunks.
const CollectionName = "fund_chunks"

// ScoredChunk is a chunk returned from similarity search with its cosine
// score.
type ScoredChunk struct {
	Chunk fund.TextChunk
	Score float64
}

// Index wraps the Qdrant client with connection management and retries.
type Index struct {
	client *qdrant.Client
	host   string
	port   int
}

// NewIndex connects to Qdrant and fails fast if it is unreachable. The
// health check retries with exponential backoff before giving up.
func NewIndex(host string, port int) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &Index{
		client: client,
		host:   host,
		port:   port,
	}

	if err := idx.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return idx, nil
}

func (s *Index) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(b, ctx))
}

// Health performs a single health check against Qdrant.
func (s *Index) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the chunk collection and its payload indexes if
// they do not exist yet. Idempotent.
func (s *Index) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			"content": {
				Size:     embedding.Dimension,
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Without these indexes filtered search degrades badly.
	for _, field := range []string{"scheme_code", "chunk_type", "source_url"} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: CollectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// ClearCollection drops and recreates the collection. Used before a full
// re-index.
func (s *Index) ClearCollection(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, CollectionName); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.EnsureCollection(ctx)
}

// Close closes the Qdrant client connection.
func (s *Index) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Index) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}, backoff.WithContext(b, ctx))
}

// pointID derives a stable UUID from the chunk's content hash, so re-indexing
// the same chunk overwrites its point instead of duplicating it.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

// DeletePoints removes the points derived from the given chunk IDs. Deleting
// an absent point is not an error.
func (s *Index) DeletePoints(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	ids := make([]*qdrant.PointId, 0, len(chunkIDs))
	for _, chunkID := range chunkIDs {
		ids = append(ids, qdrant.NewIDUUID(pointID(chunkID)))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: CollectionName,
			Points:         qdrant.NewPointsSelector(ids...),
		})
		return err
	}, backoff.WithContext(b, ctx))
}

// UpsertChunks stores chunks with their embedding vectors. vectors[i] must be
// the embedding of chunks[i].
func (s *Index) UpsertChunks(ctx context.Context, chunks []fund.TextChunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("have %d chunks but %d vectors", len(chunks), len(vectors))
	}
	for i, vec := range vectors {
		if len(vec) != embedding.Dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(vec), embedding.Dimension)
		}
	}

	batchSize := 100
	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))

		points := make([]*qdrant.PointStruct, 0, end-i)
		for j := i; j < end; j++ {
			chunk := chunks[j]
			points = append(points, &qdrant.PointStruct{
				Id: qdrant.NewIDUUID(pointID(chunk.ChunkID)),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					"content": qdrant.NewVector(vectors[j]...),
				}),
				Payload: qdrant.NewValueMap(map[string]any{
					"chunk_id":    chunk.ChunkID,
					"scheme_code": chunk.SchemeCode,
					"chunk_type":  string(chunk.ChunkType),
					"content":     chunk.Content,
					"source_url":  chunk.SourceURL,
					"created_at":  chunk.CreatedAt.Format(time.RFC3339),
				}),
			})
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// Search returns the top limit chunks by cosine similarity to vector. An
// empty schemeCode searches across all schemes.
func (s *Index) Search(ctx context.Context, vector []float32, limit int, schemeCode string) ([]ScoredChunk, error) {
	if len(vector) != embedding.Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), embedding.Dimension)
	}

	var filter *qdrant.Filter
	if schemeCode != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("scheme_code", schemeCode),
			},
		}
	}

	vectorName := "content"
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Using:          &vectorName,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	scored := make([]ScoredChunk, 0, len(results))
	for _, result := range results {
		payload := result.Payload

		createdAt, err := time.Parse(time.RFC3339, payload["created_at"].GetStringValue())
		if err != nil {
			createdAt = time.Time{}
		}

		scored = append(scored, ScoredChunk{
			Chunk: fund.TextChunk{
				ChunkID:    payload["chunk_id"].GetStringValue(),
				SchemeCode: payload["scheme_code"].GetStringValue(),
				ChunkType:  fund.ChunkType(payload["chunk_type"].GetStringValue()),
				Content:    payload["content"].GetStringValue(),
				SourceURL:  payload["source_url"].GetStringValue(),
				CreatedAt:  createdAt,
			},
			Score: float64(result.Score),
		})
	}

	return scored, nil
}

// PointsCount reports how many points the collection holds, for status
// surfaces.
func (s *Index) PointsCount(ctx context.Context) (uint64, error) {
	collection, err := s.client.GetCollectionInfo(ctx, CollectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection: %w", err)
	}
	return collection.GetPointsCount(), nil
}
