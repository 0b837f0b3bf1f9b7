// Package storage provides adapters implementing the graph.Adapter contract:
// an in-memory adapter for tests and ephemeral pipelines, and a SQLite-backed
// adapter for durable graphs.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"codelens/internal/graph"
	"codelens/internal/logging"
)

// MemoryAdapter is a map-backed storage adapter. It is safe for concurrent
// use and returns deterministic (id-ordered) search results.
type MemoryAdapter struct {
	mu            sync.RWMutex
	entities      map[string]graph.Entity
	relationships map[string]graph.Relationship
}

// NewMemoryAdapter creates an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		entities:      make(map[string]graph.Entity),
		relationships: make(map[string]graph.Relationship),
	}
}

// StoreEntity inserts or replaces an entity.
func (m *MemoryAdapter) StoreEntity(ctx context.Context, e graph.Entity) graph.OperationResult {
	if e.ID == "" {
		return graph.OperationResult{Error: "entity id must be non-empty"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[e.ID] = e
	return graph.OperationResult{Success: true, Affected: 1}
}

// GetEntity returns the entity or (nil, nil) when absent.
func (m *MemoryAdapter) GetEntity(ctx context.Context, id string) (*graph.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entities[id]; ok {
		out := e
		return &out, nil
	}
	return nil, nil
}

// UpdateEntity replaces the stored entity with the merged copy provided by
// the caller. Fails when the id is unknown.
func (m *MemoryAdapter) UpdateEntity(ctx context.Context, id string, partial graph.Entity) graph.OperationResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[id]; !ok {
		return graph.OperationResult{Error: fmt.Sprintf("entity not found: %s", id)}
	}
	partial.ID = id
	m.entities[id] = partial
	return graph.OperationResult{Success: true, Affected: 1}
}

// DeleteEntity removes an entity. Deleting an absent id is a no-op success
// with Affected=0.
func (m *MemoryAdapter) DeleteEntity(ctx context.Context, id string) graph.OperationResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[id]; !ok {
		return graph.OperationResult{Success: true, Affected: 0}
	}
	delete(m.entities, id)
	return graph.OperationResult{Success: true, Affected: 1}
}

// SearchEntities filters entities by the given criteria, ordered by id.
func (m *MemoryAdapter) SearchEntities(ctx context.Context, criteria graph.EntitySearch) ([]graph.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []graph.Entity
	for _, e := range m.entities {
		if !entityMatches(e, criteria) {
			continue
		}
		matches = append(matches, e)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return paginate(matches, criteria.Limit, criteria.Offset), nil
}

// StoreRelationship inserts or replaces a relationship.
func (m *MemoryAdapter) StoreRelationship(ctx context.Context, r graph.Relationship) graph.OperationResult {
	if r.ID == "" {
		return graph.OperationResult{Error: "relationship id must be non-empty"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relationships[r.ID] = r
	return graph.OperationResult{Success: true, Affected: 1}
}

// GetRelationship returns the relationship or (nil, nil) when absent.
func (m *MemoryAdapter) GetRelationship(ctx context.Context, id string) (*graph.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.relationships[id]; ok {
		out := r
		return &out, nil
	}
	return nil, nil
}

// DeleteRelationship removes a relationship; absent ids are a no-op success.
func (m *MemoryAdapter) DeleteRelationship(ctx context.Context, id string) graph.OperationResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.relationships[id]; !ok {
		return graph.OperationResult{Success: true, Affected: 0}
	}
	delete(m.relationships, id)
	return graph.OperationResult{Success: true, Affected: 1}
}

// SearchRelationships filters relationships by the given criteria, ordered by id.
func (m *MemoryAdapter) SearchRelationships(ctx context.Context, criteria graph.RelationshipSearch) ([]graph.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []graph.Relationship
	for _, r := range m.relationships {
		if !relationshipMatches(r, criteria) {
			continue
		}
		matches = append(matches, r)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return paginate(matches, criteria.Limit, criteria.Offset), nil
}

// Stats reports entity and relationship counts.
func (m *MemoryAdapter) Stats(ctx context.Context) (graph.StorageStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return graph.StorageStats{
		EntityCount:       len(m.entities),
		RelationshipCount: len(m.relationships),
	}, nil
}

// Clear drops everything.
func (m *MemoryAdapter) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = make(map[string]graph.Entity)
	m.relationships = make(map[string]graph.Relationship)
	logging.StoreDebug("Memory adapter cleared")
	return nil
}

// AllEntities returns every entity, ordered by id.
func (m *MemoryAdapter) AllEntities(ctx context.Context) ([]graph.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]graph.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AllRelationships returns every relationship, ordered by id.
func (m *MemoryAdapter) AllRelationships(ctx context.Context) ([]graph.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]graph.Relationship, 0, len(m.relationships))
	for _, r := range m.relationships {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// Matching helpers (shared by both adapters for metadata criteria)
// =============================================================================

func entityMatches(e graph.Entity, c graph.EntitySearch) bool {
	if c.ID != "" && e.ID != c.ID {
		return false
	}
	if c.Type != "" && e.Type != c.Type {
		return false
	}
	if c.Name != "" && e.Name != c.Name {
		return false
	}
	if c.Query != "" && !freeTextMatch(c.Query, e.Name, e.Metadata) {
		return false
	}
	return metadataMatches(e.Metadata, c.Metadata)
}

func relationshipMatches(r graph.Relationship, c graph.RelationshipSearch) bool {
	if c.ID != "" && r.ID != c.ID {
		return false
	}
	if c.Type != "" && r.Type != c.Type {
		return false
	}
	if c.SourceID != "" && r.SourceID != c.SourceID {
		return false
	}
	if c.TargetID != "" && r.TargetID != c.TargetID {
		return false
	}
	return metadataMatches(r.Metadata, c.Metadata)
}

// freeTextMatch reports whether query appears (case-insensitive) in name or
// in the stringified metadata.
func freeTextMatch(query, name string, metadata map[string]interface{}) bool {
	needle := strings.ToLower(query)
	if strings.Contains(strings.ToLower(name), needle) {
		return true
	}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err == nil && strings.Contains(strings.ToLower(string(raw)), needle) {
			return true
		}
	}
	return false
}

// metadataMatches checks equality of each wanted key against the stored
// metadata via stringified comparison.
func metadataMatches(have, want map[string]interface{}) bool {
	for k, v := range want {
		actual, ok := have[k]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", actual) != fmt.Sprintf("%v", v) {
			return false
		}
	}
	return true
}

// paginate applies offset/limit to an already-ordered slice.
func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
