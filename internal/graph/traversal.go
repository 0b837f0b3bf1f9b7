package graph

import (
	"context"
	"fmt"

	"codelens/internal/logging"
)

// DefaultMaxPathDepth bounds FindPath when the caller passes maxDepth <= 0.
const DefaultMaxPathDepth = 5

// FindPath runs a breadth-first search over the outgoing-adjacency projection
// from sourceID to targetID. BFS guarantees the first path found has the
// smallest hop count. Every traversed edge resolves its underlying
// relationship record so the result carries full edge data, not just ids.
// Returns (nil, nil) when no path exists within maxDepth hops.
func (g *KnowledgeGraph) FindPath(ctx context.Context, sourceID, targetID string, maxDepth int) (*PathResult, error) {
	timer := logging.StartTimer(logging.CategoryGraph, "FindPath")
	defer timer.Stop()

	if maxDepth <= 0 {
		maxDepth = DefaultMaxPathDepth
	}

	logging.GraphDebug("FindPath: %s -> %s (maxDepth=%d)", sourceID, targetID, maxDepth)

	type queueItem struct {
		node string
		path []string
		rels []Relationship
	}

	queue := []queueItem{{node: sourceID, path: []string{sourceID}}}
	visited := map[string]bool{sourceID: true}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.node == targetID {
			entities, err := g.resolveEntities(ctx, current.path)
			if err != nil {
				return nil, err
			}
			logging.GraphDebug("Path found: %d hops, %d nodes visited", len(current.rels), len(visited))
			return &PathResult{
				Path:          entities,
				Relationships: current.rels,
				Distance:      len(current.rels),
			}, nil
		}

		// Depth bound: a path of N+1 nodes spans N hops.
		if len(current.path) > maxDepth {
			continue
		}

		for _, next := range g.OutgoingSnapshot(current.node) {
			if visited[next] {
				continue
			}
			visited[next] = true

			rel, err := g.relationshipBetween(ctx, current.node, next)
			if err != nil {
				return nil, err
			}
			if rel == nil {
				// Adjacency without a backing record means the cache is ahead
				// of storage; skip the edge rather than fabricate one.
				logging.GraphWarn("Adjacency edge %s->%s has no relationship record", current.node, next)
				continue
			}

			path := append(append([]string{}, current.path...), next)
			rels := append(append([]Relationship{}, current.rels...), *rel)
			queue = append(queue, queueItem{node: next, path: path, rels: rels})
		}
	}

	logging.GraphDebug("No path from %s to %s within depth %d (visited %d)", sourceID, targetID, maxDepth, len(visited))
	return nil, nil
}

// Neighbors expands from id up to opts.MaxDepth hops and resolves the reached
// ids to entities. The origin is never included, even when a cycle leads back
// to it. Expansion is iterative with an explicit work queue and a single
// visited set, so cycles terminate and depth limits are exact.
func (g *KnowledgeGraph) Neighbors(ctx context.Context, id string, opts NeighborOptions) ([]Entity, error) {
	timer := logging.StartTimer(logging.CategoryGraph, "Neighbors")
	defer timer.Stop()

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 1
	}

	typeFilter := make(map[string]bool, len(opts.RelationshipTypes))
	for _, t := range opts.RelationshipTypes {
		typeFilter[t] = true
	}

	type queueItem struct {
		node  string
		depth int
	}

	queue := []queueItem{{node: id, depth: 0}}
	visited := map[string]bool{id: true}
	var found []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxDepth {
			continue
		}

		for _, next := range g.adjacentIDs(current.node, typeFilter) {
			if visited[next] {
				continue
			}
			visited[next] = true
			found = append(found, next)
			queue = append(queue, queueItem{node: next, depth: current.depth + 1})
		}
	}

	entities, err := g.resolveEntities(ctx, found)
	if err != nil {
		return nil, err
	}
	logging.GraphDebug("Neighbors of %s: %d within depth %d", id, len(entities), maxDepth)
	return entities, nil
}

// adjacentIDs returns the outgoing neighbor ids of node, restricted to the
// given relationship types when the filter is non-empty.
func (g *KnowledgeGraph) adjacentIDs(node string, typeFilter map[string]bool) []string {
	if len(typeFilter) == 0 {
		return g.OutgoingSnapshot(node)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, r := range g.relationships {
		if r.SourceID != node || !typeFilter[r.Type] {
			continue
		}
		if _, ok := seen[r.TargetID]; ok {
			continue
		}
		seen[r.TargetID] = struct{}{}
		ids = append(ids, r.TargetID)
	}
	return ids
}

// RelationshipBetween finds a relationship record connecting source to
// target, nil when none exists.
func (g *KnowledgeGraph) RelationshipBetween(ctx context.Context, source, target string) (*Relationship, error) {
	return g.relationshipBetween(ctx, source, target)
}

// relationshipBetween finds a relationship record connecting source to target,
// preferring the cache and falling back to a storage search.
func (g *KnowledgeGraph) relationshipBetween(ctx context.Context, source, target string) (*Relationship, error) {
	g.mu.RLock()
	for _, r := range g.relationships {
		if r.SourceID == source && r.TargetID == target {
			g.mu.RUnlock()
			out := r
			return &out, nil
		}
	}
	g.mu.RUnlock()

	matches, err := g.store.SearchRelationships(ctx, RelationshipSearch{SourceID: source, TargetID: target, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("relationship lookup %s->%s failed: %w", source, target, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	r := matches[0]
	g.mu.Lock()
	g.relationships[r.ID] = r
	g.mu.Unlock()
	return &r, nil
}

// resolveEntities maps ids to entities, silently skipping ids that no longer
// resolve (deleted between expansion and resolution).
func (g *KnowledgeGraph) resolveEntities(ctx context.Context, ids []string) ([]Entity, error) {
	entities := make([]Entity, 0, len(ids))
	for _, id := range ids {
		e, err := g.GetEntity(ctx, id)
		if err != nil {
			return nil, err
		}
		if e != nil {
			entities = append(entities, *e)
		}
	}
	return entities, nil
}
