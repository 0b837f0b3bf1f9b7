package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"codelens/internal/logging"
)

// KnowledgeGraph layers an in-memory entity/relationship cache and adjacency
// maps over a storage adapter. The caches are owned exclusively by the graph
// instance; callers only ever receive copies or snapshots. Cache mutation
// happens in the same call that mutates storage, so a reader observing the
// graph after a completed write always sees the update. Across processes
// sharing one storage backend there is no synchronization - the cache reflects
// only this instance's view.
type KnowledgeGraph struct {
	mu    sync.RWMutex
	store Adapter

	entities      map[string]Entity
	relationships map[string]Relationship
	outgoing      map[string]map[string]struct{} // sourceID -> set of targetIDs
	incoming      map[string]map[string]struct{} // targetID -> set of sourceIDs
}

// New creates a knowledge graph over the given storage adapter.
func New(store Adapter) *KnowledgeGraph {
	return &KnowledgeGraph{
		store:         store,
		entities:      make(map[string]Entity),
		relationships: make(map[string]Relationship),
		outgoing:      make(map[string]map[string]struct{}),
		incoming:      make(map[string]map[string]struct{}),
	}
}

// AddEntity writes the entity through to storage and, on success, populates
// the entity cache. A storage failure leaves the cache untouched.
func (g *KnowledgeGraph) AddEntity(ctx context.Context, e Entity) error {
	timer := logging.StartTimer(logging.CategoryGraph, "AddEntity")
	defer timer.Stop()

	if e.ID == "" {
		return fmt.Errorf("entity id must be non-empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.StoreEntity(ctx, e).Err(); err != nil {
		logging.Get(logging.CategoryGraph).Error("AddEntity %s failed: %v", e.ID, err)
		return err
	}

	g.entities[e.ID] = e
	logging.GraphDebug("Entity added: %s (%s)", e.ID, e.Type)
	return nil
}

// AddRelationship writes the relationship through to storage and, on success,
// populates the relationship cache and both adjacency maps.
func (g *KnowledgeGraph) AddRelationship(ctx context.Context, r Relationship) error {
	timer := logging.StartTimer(logging.CategoryGraph, "AddRelationship")
	defer timer.Stop()

	if r.ID == "" {
		return fmt.Errorf("relationship id must be non-empty")
	}
	if r.SourceID == "" || r.TargetID == "" {
		return fmt.Errorf("relationship %s endpoints must be non-empty", r.ID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.StoreRelationship(ctx, r).Err(); err != nil {
		logging.Get(logging.CategoryGraph).Error("AddRelationship %s failed: %v", r.ID, err)
		return err
	}

	g.relationships[r.ID] = r
	g.linkLocked(r.SourceID, r.TargetID)
	logging.GraphDebug("Relationship added: %s -[%s]-> %s", r.SourceID, r.Type, r.TargetID)
	return nil
}

// GetEntity looks up an entity cache-first, falling back to storage. The cache
// is populated lazily on a storage hit. Returns (nil, nil) when absent.
func (g *KnowledgeGraph) GetEntity(ctx context.Context, id string) (*Entity, error) {
	g.mu.RLock()
	if e, ok := g.entities[id]; ok {
		g.mu.RUnlock()
		out := e
		return &out, nil
	}
	g.mu.RUnlock()

	e, err := g.store.GetEntity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("storage lookup for entity %s failed: %w", id, err)
	}
	if e == nil {
		return nil, nil
	}

	g.mu.Lock()
	g.entities[e.ID] = *e
	g.mu.Unlock()

	out := *e
	return &out, nil
}

// GetRelationship looks up a relationship cache-first, falling back to
// storage. On a storage hit the cache and adjacency maps are backfilled.
func (g *KnowledgeGraph) GetRelationship(ctx context.Context, id string) (*Relationship, error) {
	g.mu.RLock()
	if r, ok := g.relationships[id]; ok {
		g.mu.RUnlock()
		out := r
		return &out, nil
	}
	g.mu.RUnlock()

	r, err := g.store.GetRelationship(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("storage lookup for relationship %s failed: %w", id, err)
	}
	if r == nil {
		return nil, nil
	}

	g.mu.Lock()
	g.relationships[r.ID] = *r
	g.linkLocked(r.SourceID, r.TargetID)
	g.mu.Unlock()

	out := *r
	return &out, nil
}

// UpdateEntity shallow-merges partial into the stored entity. Non-empty Type
// and Name replace the existing values; Metadata keys merge with new values
// winning. Fails with NotFoundError when the entity is absent.
func (g *KnowledgeGraph) UpdateEntity(ctx context.Context, id string, partial Entity) (*Entity, error) {
	timer := logging.StartTimer(logging.CategoryGraph, "UpdateEntity")
	defer timer.Stop()

	existing, err := g.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, &NotFoundError{Kind: "entity", ID: id}
	}

	merged := *existing
	if partial.Type != "" {
		merged.Type = partial.Type
	}
	if partial.Name != "" {
		merged.Name = partial.Name
	}
	if len(partial.Metadata) > 0 {
		meta := make(map[string]interface{}, len(merged.Metadata)+len(partial.Metadata))
		for k, v := range merged.Metadata {
			meta[k] = v
		}
		for k, v := range partial.Metadata {
			meta[k] = v
		}
		merged.Metadata = meta
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.UpdateEntity(ctx, id, merged).Err(); err != nil {
		logging.Get(logging.CategoryGraph).Error("UpdateEntity %s failed: %v", id, err)
		return nil, err
	}

	g.entities[id] = merged
	out := merged
	return &out, nil
}

// DeleteEntity removes the entity and cascades to every relationship where it
// is source or target. Relationships go first so no dangling edge is ever
// observable, then the entity, then the id is scrubbed from every adjacency
// set system-wide.
func (g *KnowledgeGraph) DeleteEntity(ctx context.Context, id string) error {
	timer := logging.StartTimer(logging.CategoryGraph, "DeleteEntity")
	defer timer.Stop()

	g.mu.Lock()
	defer g.mu.Unlock()

	incident, err := g.incidentRelationshipsLocked(ctx, id)
	if err != nil {
		return err
	}

	for _, r := range incident {
		if err := g.store.DeleteRelationship(ctx, r.ID).Err(); err != nil {
			logging.Get(logging.CategoryGraph).Error("Cascade delete of relationship %s failed: %v", r.ID, err)
			return err
		}
		delete(g.relationships, r.ID)
	}

	if err := g.store.DeleteEntity(ctx, id).Err(); err != nil {
		logging.Get(logging.CategoryGraph).Error("DeleteEntity %s failed: %v", id, err)
		return err
	}
	delete(g.entities, id)

	// Scrub the id out of every adjacency set.
	delete(g.outgoing, id)
	delete(g.incoming, id)
	for _, targets := range g.outgoing {
		delete(targets, id)
	}
	for _, sources := range g.incoming {
		delete(sources, id)
	}

	logging.GraphDebug("Entity deleted: %s (cascaded %d relationships)", id, len(incident))
	return nil
}

// DeleteRelationship removes a single relationship and unlinks its endpoints
// unless another cached relationship still connects them.
func (g *KnowledgeGraph) DeleteRelationship(ctx context.Context, id string) error {
	timer := logging.StartTimer(logging.CategoryGraph, "DeleteRelationship")
	defer timer.Stop()

	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.relationships[id]
	if !ok {
		stored, err := g.store.GetRelationship(ctx, id)
		if err != nil {
			return fmt.Errorf("storage lookup for relationship %s failed: %w", id, err)
		}
		if stored == nil {
			return &NotFoundError{Kind: "relationship", ID: id}
		}
		r = *stored
	}

	if err := g.store.DeleteRelationship(ctx, id).Err(); err != nil {
		logging.Get(logging.CategoryGraph).Error("DeleteRelationship %s failed: %v", id, err)
		return err
	}
	delete(g.relationships, id)

	if !g.stillConnectedLocked(r.SourceID, r.TargetID) {
		g.unlinkLocked(r.SourceID, r.TargetID)
	}
	return nil
}

// RebuildCache discards all cached state and rehydrates it from storage.
func (g *KnowledgeGraph) RebuildCache(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryGraph, "RebuildCache")
	defer timer.Stop()

	entities, err := g.store.AllEntities(ctx)
	if err != nil {
		return fmt.Errorf("cache rebuild: loading entities failed: %w", err)
	}
	relationships, err := g.store.AllRelationships(ctx)
	if err != nil {
		return fmt.Errorf("cache rebuild: loading relationships failed: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetLocked()
	for _, e := range entities {
		g.entities[e.ID] = e
	}
	for _, r := range relationships {
		g.relationships[r.ID] = r
		g.linkLocked(r.SourceID, r.TargetID)
	}

	logging.Graph("Cache rebuilt: %d entities, %d relationships", len(entities), len(relationships))
	return nil
}

// ClearCache drops all cached state without touching storage.
func (g *KnowledgeGraph) ClearCache() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
	logging.GraphDebug("Cache cleared")
}

// OutgoingSnapshot returns a sorted copy of the cached outgoing neighbor ids
// for an entity. The live adjacency set is never exposed.
func (g *KnowledgeGraph) OutgoingSnapshot(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	targets := g.outgoing[id]
	if len(targets) == 0 {
		return nil
	}
	ids := make([]string, 0, len(targets))
	for t := range targets {
		ids = append(ids, t)
	}
	sort.Strings(ids)
	return ids
}

// resetLocked reinitializes all cache maps. Caller holds g.mu.
func (g *KnowledgeGraph) resetLocked() {
	g.entities = make(map[string]Entity)
	g.relationships = make(map[string]Relationship)
	g.outgoing = make(map[string]map[string]struct{})
	g.incoming = make(map[string]map[string]struct{})
}

// linkLocked records an edge in both adjacency maps. Caller holds g.mu.
func (g *KnowledgeGraph) linkLocked(source, target string) {
	if g.outgoing[source] == nil {
		g.outgoing[source] = make(map[string]struct{})
	}
	g.outgoing[source][target] = struct{}{}
	if g.incoming[target] == nil {
		g.incoming[target] = make(map[string]struct{})
	}
	g.incoming[target][source] = struct{}{}
}

// unlinkLocked removes an edge from both adjacency maps. Caller holds g.mu.
func (g *KnowledgeGraph) unlinkLocked(source, target string) {
	if targets, ok := g.outgoing[source]; ok {
		delete(targets, target)
		if len(targets) == 0 {
			delete(g.outgoing, source)
		}
	}
	if sources, ok := g.incoming[target]; ok {
		delete(sources, source)
		if len(sources) == 0 {
			delete(g.incoming, target)
		}
	}
}

// stillConnectedLocked reports whether any cached relationship still links
// source to target. Caller holds g.mu.
func (g *KnowledgeGraph) stillConnectedLocked(source, target string) bool {
	for _, r := range g.relationships {
		if r.SourceID == source && r.TargetID == target {
			return true
		}
	}
	return false
}

// incidentRelationshipsLocked enumerates every relationship touching id in
// either direction, merging storage search results with the local cache.
// Caller holds g.mu.
func (g *KnowledgeGraph) incidentRelationshipsLocked(ctx context.Context, id string) ([]Relationship, error) {
	seen := make(map[string]Relationship)

	asSource, err := g.store.SearchRelationships(ctx, RelationshipSearch{SourceID: id})
	if err != nil {
		return nil, fmt.Errorf("enumerating outgoing relationships of %s failed: %w", id, err)
	}
	for _, r := range asSource {
		seen[r.ID] = r
	}

	asTarget, err := g.store.SearchRelationships(ctx, RelationshipSearch{TargetID: id})
	if err != nil {
		return nil, fmt.Errorf("enumerating incoming relationships of %s failed: %w", id, err)
	}
	for _, r := range asTarget {
		seen[r.ID] = r
	}

	// Cached relationships may not have hit storage search pagination.
	for _, r := range g.relationships {
		if r.SourceID == id || r.TargetID == id {
			seen[r.ID] = r
		}
	}

	incident := make([]Relationship, 0, len(seen))
	for _, r := range seen {
		incident = append(incident, r)
	}
	sort.Slice(incident, func(i, j int) bool { return incident[i].ID < incident[j].ID })
	return incident, nil
}
