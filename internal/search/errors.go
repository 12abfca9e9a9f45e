package search

import "errors"

var (
	ErrQdrantUnreachable = errors.New("qdrant server unreachable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
