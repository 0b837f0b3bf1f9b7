package graph

import (
	"context"
	"fmt"

	"codelens/internal/logging"
	"codelens/internal/similarity"
)

// EntityMatch is one scored result of a similarity search.
type EntityMatch struct {
	Entity Entity  `json:"entity"`
	Score  float64 `json:"score"`
}

// SimilarEntities ranks entities carrying an embedding vector in their
// metadata by closeness to the given entity's embedding, best first. The
// origin entity is never included; entities without an embedding, or whose
// embedding dimension does not match the origin's, are skipped.
func (g *KnowledgeGraph) SimilarEntities(ctx context.Context, id string, k int, metric similarity.Metric) ([]EntityMatch, error) {
	timer := logging.StartTimer(logging.CategorySimilarity, "SimilarEntities")
	defer timer.Stop()

	source, err := g.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, &NotFoundError{Kind: "entity", ID: id}
	}
	query := embeddingVector(source.Metadata)
	if query == nil {
		return nil, fmt.Errorf("entity %s has no embedding metadata", id)
	}

	all, err := g.store.AllEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading entities for similarity search failed: %w", err)
	}

	owners := make([]Entity, 0, len(all))
	candidates := make([][]float64, 0, len(all))
	for _, e := range all {
		if e.ID == id {
			continue
		}
		vec := embeddingVector(e.Metadata)
		if vec == nil {
			continue
		}
		owners = append(owners, e)
		candidates = append(candidates, vec)
	}

	neighbors := similarity.NearestNeighbors(query, candidates, k, metric)
	matches := make([]EntityMatch, 0, len(neighbors))
	for _, n := range neighbors {
		matches = append(matches, EntityMatch{Entity: owners[n.Index], Score: n.Score})
	}

	logging.SimilarityDebug("SimilarEntities(%s): ranked %d of %d embedded candidates", id, len(matches), len(owners))
	return matches, nil
}

// embeddingVector extracts a metadata "embedding" value as a float vector.
// JSON decoding yields []interface{}; in-memory adapters may hold []float64
// directly. Anything else is treated as absent.
func embeddingVector(metadata map[string]interface{}) []float64 {
	raw, ok := metadata["embedding"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []float64:
		return v
	case []interface{}:
		vec := make([]float64, 0, len(v))
		for _, elem := range v {
			f, ok := elem.(float64)
			if !ok {
				return nil
			}
			vec = append(vec, f)
		}
		return vec
	default:
		return nil
	}
}
