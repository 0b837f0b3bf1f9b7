package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// mockAdapter is an in-memory Adapter with injectable failures, used to
// exercise the graph layer's error propagation and cache discipline.
type mockAdapter struct {
	mu            sync.Mutex
	entities      map[string]Entity
	relationships map[string]Relationship

	// failOn maps operation names to forced errors.
	failOn map[string]string

	// calls records operation invocations in order.
	calls []string
}

func newMockAdapter() *mockAdapter {
	return &mockAdapter{
		entities:      make(map[string]Entity),
		relationships: make(map[string]Relationship),
		failOn:        make(map[string]string),
	}
}

func (m *mockAdapter) record(op string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op)
	return m.failOn[op]
}

func (m *mockAdapter) StoreEntity(ctx context.Context, e Entity) OperationResult {
	if msg := m.record("StoreEntity"); msg != "" {
		return OperationResult{Success: false, Error: msg}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[e.ID] = e
	return OperationResult{Success: true, Affected: 1}
}

func (m *mockAdapter) GetEntity(ctx context.Context, id string) (*Entity, error) {
	if msg := m.record("GetEntity"); msg != "" {
		return nil, fmt.Errorf("%s", msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entities[id]; ok {
		out := e
		return &out, nil
	}
	return nil, nil
}

func (m *mockAdapter) UpdateEntity(ctx context.Context, id string, partial Entity) OperationResult {
	if msg := m.record("UpdateEntity"); msg != "" {
		return OperationResult{Success: false, Error: msg}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[id]; !ok {
		return OperationResult{Success: false, Error: "entity not found: " + id}
	}
	m.entities[id] = partial
	return OperationResult{Success: true, Affected: 1}
}

func (m *mockAdapter) DeleteEntity(ctx context.Context, id string) OperationResult {
	if msg := m.record("DeleteEntity"); msg != "" {
		return OperationResult{Success: false, Error: msg}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entities, id)
	return OperationResult{Success: true, Affected: 1}
}

func (m *mockAdapter) SearchEntities(ctx context.Context, criteria EntitySearch) ([]Entity, error) {
	if msg := m.record("SearchEntities"); msg != "" {
		return nil, fmt.Errorf("%s", msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entity
	for _, e := range m.entities {
		if criteria.Type != "" && e.Type != criteria.Type {
			continue
		}
		if criteria.Query != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(criteria.Query)) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockAdapter) StoreRelationship(ctx context.Context, r Relationship) OperationResult {
	if msg := m.record("StoreRelationship"); msg != "" {
		return OperationResult{Success: false, Error: msg}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relationships[r.ID] = r
	return OperationResult{Success: true, Affected: 1}
}

func (m *mockAdapter) GetRelationship(ctx context.Context, id string) (*Relationship, error) {
	if msg := m.record("GetRelationship"); msg != "" {
		return nil, fmt.Errorf("%s", msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.relationships[id]; ok {
		out := r
		return &out, nil
	}
	return nil, nil
}

func (m *mockAdapter) DeleteRelationship(ctx context.Context, id string) OperationResult {
	if msg := m.record("DeleteRelationship"); msg != "" {
		return OperationResult{Success: false, Error: msg}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.relationships, id)
	return OperationResult{Success: true, Affected: 1}
}

func (m *mockAdapter) SearchRelationships(ctx context.Context, criteria RelationshipSearch) ([]Relationship, error) {
	if msg := m.record("SearchRelationships"); msg != "" {
		return nil, fmt.Errorf("%s", msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Relationship
	for _, r := range m.relationships {
		if criteria.SourceID != "" && r.SourceID != criteria.SourceID {
			continue
		}
		if criteria.TargetID != "" && r.TargetID != criteria.TargetID {
			continue
		}
		if criteria.Type != "" && r.Type != criteria.Type {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if criteria.Limit > 0 && len(out) > criteria.Limit {
		out = out[:criteria.Limit]
	}
	return out, nil
}

func (m *mockAdapter) Stats(ctx context.Context) (StorageStats, error) {
	if msg := m.record("Stats"); msg != "" {
		return StorageStats{}, fmt.Errorf("%s", msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return StorageStats{
		EntityCount:       len(m.entities),
		RelationshipCount: len(m.relationships),
	}, nil
}

func (m *mockAdapter) Clear(ctx context.Context) error {
	m.record("Clear")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = make(map[string]Entity)
	m.relationships = make(map[string]Relationship)
	return nil
}

func (m *mockAdapter) AllEntities(ctx context.Context) ([]Entity, error) {
	return m.SearchEntities(ctx, EntitySearch{})
}

func (m *mockAdapter) AllRelationships(ctx context.Context) ([]Relationship, error) {
	return m.SearchRelationships(ctx, RelationshipSearch{})
}

// buildGraph populates a fresh graph over a mock adapter with the given
// entities and relationships, failing the test on any error.
func buildGraph(t interface {
	Helper()
	Fatalf(format string, args ...interface{})
}, entities []Entity, relationships []Relationship) (*KnowledgeGraph, *mockAdapter) {
	t.Helper()
	adapter := newMockAdapter()
	g := New(adapter)
	ctx := context.Background()
	for _, e := range entities {
		if err := g.AddEntity(ctx, e); err != nil {
			t.Fatalf("AddEntity(%s): %v", e.ID, err)
		}
	}
	for _, r := range relationships {
		if err := g.AddRelationship(ctx, r); err != nil {
			t.Fatalf("AddRelationship(%s): %v", r.ID, err)
		}
	}
	return g, adapter
}
