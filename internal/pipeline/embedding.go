package pipeline

import (
	"context"
	"fmt"
)

// generateEmbedding produces a vector from the content summary. Unlike the
// analysis stages, embedding failure hard-fails the email: a heuristic cannot
// fabricate a usable vector, and storing a zero-quality one would poison
// every similarity computation downstream.
func (p *Pipeline) generateEmbedding(ctx context.Context, summary string) ([]float32, error) {
	vec, err := p.embedder.Embed(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	return vec, nil
}
