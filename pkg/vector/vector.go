// Package vector wraps the vector database behind a small provider
// interface so the retrieval service can be tested without a running
// Qdrant instance.
package vector

import "context"

// Point is one embedded record ready to upsert.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchResult is one scored hit. Content carries the raw indexed text.
type SearchResult struct {
	ID      string
	Content string
	Score   float32
}

type Provider interface {
	// Recreate drops the collection if present and creates it fresh with
	// the given vector size.
	Recreate(ctx context.Context, collection string, vectorSize uint64) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]SearchResult, error)
	DeleteCollection(ctx context.Context, collection string) error
	Close() error
}
