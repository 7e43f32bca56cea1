// Package embedders turns text into dense vectors for the retrieval
// service.
package embedders

import "context"

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the vector size the model produces.
	Dimension() int
	Close() error
}
