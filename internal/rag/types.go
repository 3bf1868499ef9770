package rag

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex runs nearest-neighbour lookups over stored problems.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, topK int) ([]Document, error)
}

// Document is one stored problem returned by a vector lookup.
type Document struct {
	ID       string
	Problem  string
	Solution string
	Source   string
	Score    float64
}
