package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"codelens/internal/logging"
)

// SearchOptions controls a combined graph search.
type SearchOptions struct {
	EntityTypes          []string // Restrict entity matches to these types
	Limit                int
	Offset               int
	IncludeRelationships bool
}

// SearchResult is the combined outcome of a graph search.
type SearchResult struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// Search finds entities and optionally relationships matching a free-text
// query. Entity search is delegated to the storage adapter; relationship
// matching runs locally over type and stringified metadata because storage
// has no relationship free-text search.
func (g *KnowledgeGraph) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	timer := logging.StartTimer(logging.CategoryGraph, "Search")
	defer timer.Stop()

	criteria := EntitySearch{Query: query, Limit: opts.Limit, Offset: opts.Offset}
	if len(opts.EntityTypes) == 1 {
		criteria.Type = opts.EntityTypes[0]
	}

	entities, err := g.store.SearchEntities(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("entity search failed: %w", err)
	}

	// Multi-type restriction is applied locally; the adapter contract only
	// supports a single type criterion.
	if len(opts.EntityTypes) > 1 {
		allowed := make(map[string]bool, len(opts.EntityTypes))
		for _, t := range opts.EntityTypes {
			allowed[t] = true
		}
		filtered := entities[:0]
		for _, e := range entities {
			if allowed[e.Type] {
				filtered = append(filtered, e)
			}
		}
		entities = filtered
	}

	result := &SearchResult{Entities: entities}

	if opts.IncludeRelationships {
		relationships, err := g.searchRelationshipsLocal(ctx, query)
		if err != nil {
			return nil, err
		}
		result.Relationships = relationships
	}

	logging.GraphDebug("Search %q: %d entities, %d relationships", query, len(result.Entities), len(result.Relationships))
	return result, nil
}

// searchRelationshipsLocal filters all relationships by substring match on
// type and stringified metadata.
func (g *KnowledgeGraph) searchRelationshipsLocal(ctx context.Context, query string) ([]Relationship, error) {
	all, err := g.store.AllRelationships(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading relationships for search failed: %w", err)
	}

	needle := strings.ToLower(query)
	var matches []Relationship
	for _, r := range all {
		if strings.Contains(strings.ToLower(r.Type), needle) {
			matches = append(matches, r)
			continue
		}
		if len(r.Metadata) > 0 {
			raw, err := json.Marshal(r.Metadata)
			if err == nil && strings.Contains(strings.ToLower(string(raw)), needle) {
				matches = append(matches, r)
			}
		}
	}
	return matches, nil
}
