// Package embed abstracts the external embedding and chunking services.
//
// The service contract is modeled as interfaces so the core never depends on
// a concrete backend: an HTTP provider talks to the configured service, and
// a deterministic hash-based provider keeps indexing moving during outages.
package embed

import (
	"context"
	"math"
	"time"
)

// DefaultTimeout is the per-call deadline for external RPCs.
const DefaultTimeout = 30 * time.Second

// FallbackModelName marks vectors produced by the deterministic fallback.
// Chunks embedded under this model are flagged approximate in search results.
const FallbackModelName = "hash-fallback"

// Provider generates vector embeddings for text.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier stored with each chunk.
	ModelName() string
}

// Piece is one sub-chunk returned by the external chunker, optionally with
// an inline embedding.
type Piece struct {
	Text   string
	Vector []float32
	Model  string
	Score  float64
}

// Chunker splits prose into embeddable pieces. Implementations may return
// inline embeddings so the caller can finalize chunks in one step.
type Chunker interface {
	ChunkText(ctx context.Context, text string) ([]Piece, error)
}

// NormalizeVector scales a vector to unit L2 length in place and returns it.
// Zero vectors are returned unchanged.
func NormalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	for i, val := range v {
		v[i] = float32(float64(val) / magnitude)
	}
	return v
}
