package storage

import (
	"context"
	"testing"

	"codelens/internal/graph"
)

// runAdapterContract exercises the storage adapter contract shared by every
// backend: CRUD, search criteria, pagination, and clean-miss semantics.
func runAdapterContract(t *testing.T, adapter graph.Adapter) {
	ctx := context.Background()

	t.Run("EntityCRUD", func(t *testing.T) {
		if err := adapter.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}

		e := graph.Entity{ID: "e1", Type: "function", Name: "ParseConfig",
			Metadata: map[string]interface{}{"filePath": "config.go"}}
		if err := adapter.StoreEntity(ctx, e).Err(); err != nil {
			t.Fatalf("StoreEntity: %v", err)
		}

		got, err := adapter.GetEntity(ctx, "e1")
		if err != nil {
			t.Fatalf("GetEntity: %v", err)
		}
		if got == nil || got.Name != "ParseConfig" {
			t.Errorf("GetEntity = %+v, want ParseConfig", got)
		}
		if got.Metadata["filePath"] != "config.go" {
			t.Errorf("metadata not round-tripped: %v", got.Metadata)
		}

		missing, err := adapter.GetEntity(ctx, "nope")
		if err != nil {
			t.Fatalf("GetEntity(missing): %v", err)
		}
		if missing != nil {
			t.Errorf("clean miss should be nil, got %+v", missing)
		}

		e.Name = "LoadConfig"
		if err := adapter.UpdateEntity(ctx, "e1", e).Err(); err != nil {
			t.Fatalf("UpdateEntity: %v", err)
		}
		got, _ = adapter.GetEntity(ctx, "e1")
		if got.Name != "LoadConfig" {
			t.Errorf("update not applied: %+v", got)
		}

		if err := adapter.UpdateEntity(ctx, "ghost", e).Err(); err == nil {
			t.Error("UpdateEntity on missing id should fail")
		}

		if err := adapter.DeleteEntity(ctx, "e1").Err(); err != nil {
			t.Fatalf("DeleteEntity: %v", err)
		}
		got, _ = adapter.GetEntity(ctx, "e1")
		if got != nil {
			t.Errorf("entity survived delete: %+v", got)
		}
	})

	t.Run("EntitySearch", func(t *testing.T) {
		if err := adapter.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		seed := []graph.Entity{
			{ID: "e1", Type: "function", Name: "UserService"},
			{ID: "e2", Type: "class", Name: "UserController",
				Metadata: map[string]interface{}{"language": "go"}},
			{ID: "e3", Type: "function", Name: "AdminService"},
		}
		for _, e := range seed {
			if err := adapter.StoreEntity(ctx, e).Err(); err != nil {
				t.Fatalf("StoreEntity(%s): %v", e.ID, err)
			}
		}

		byType, err := adapter.SearchEntities(ctx, graph.EntitySearch{Type: "function"})
		if err != nil {
			t.Fatalf("SearchEntities(type): %v", err)
		}
		if len(byType) != 2 {
			t.Errorf("type search found %d, want 2", len(byType))
		}

		byQuery, err := adapter.SearchEntities(ctx, graph.EntitySearch{Query: "user"})
		if err != nil {
			t.Fatalf("SearchEntities(query): %v", err)
		}
		if len(byQuery) != 2 {
			t.Errorf("free-text search found %d, want 2", len(byQuery))
		}

		byMeta, err := adapter.SearchEntities(ctx, graph.EntitySearch{
			Metadata: map[string]interface{}{"language": "go"}})
		if err != nil {
			t.Fatalf("SearchEntities(metadata): %v", err)
		}
		if len(byMeta) != 1 || byMeta[0].ID != "e2" {
			t.Errorf("metadata search = %+v, want [e2]", byMeta)
		}

		paged, err := adapter.SearchEntities(ctx, graph.EntitySearch{Limit: 2, Offset: 1})
		if err != nil {
			t.Fatalf("SearchEntities(paged): %v", err)
		}
		if len(paged) != 2 {
			t.Errorf("pagination returned %d, want 2", len(paged))
		}
	})

	t.Run("RelationshipCRUDAndSearch", func(t *testing.T) {
		if err := adapter.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		for _, r := range []graph.Relationship{
			{ID: "r1", Type: "calls", SourceID: "a", TargetID: "b"},
			{ID: "r2", Type: "imports", SourceID: "a", TargetID: "c"},
			{ID: "r3", Type: "calls", SourceID: "b", TargetID: "c"},
		} {
			if err := adapter.StoreRelationship(ctx, r).Err(); err != nil {
				t.Fatalf("StoreRelationship(%s): %v", r.ID, err)
			}
		}

		got, err := adapter.GetRelationship(ctx, "r2")
		if err != nil {
			t.Fatalf("GetRelationship: %v", err)
		}
		if got == nil || got.Type != "imports" {
			t.Errorf("GetRelationship = %+v, want imports", got)
		}

		bySource, err := adapter.SearchRelationships(ctx, graph.RelationshipSearch{SourceID: "a"})
		if err != nil {
			t.Fatalf("SearchRelationships(source): %v", err)
		}
		if len(bySource) != 2 {
			t.Errorf("source search found %d, want 2", len(bySource))
		}

		byPair, err := adapter.SearchRelationships(ctx, graph.RelationshipSearch{
			SourceID: "b", TargetID: "c", Limit: 1})
		if err != nil {
			t.Fatalf("SearchRelationships(pair): %v", err)
		}
		if len(byPair) != 1 || byPair[0].ID != "r3" {
			t.Errorf("pair search = %+v, want [r3]", byPair)
		}

		if err := adapter.DeleteRelationship(ctx, "r1").Err(); err != nil {
			t.Fatalf("DeleteRelationship: %v", err)
		}
		gone, _ := adapter.GetRelationship(ctx, "r1")
		if gone != nil {
			t.Errorf("relationship survived delete: %+v", gone)
		}
	})

	t.Run("StatsAndAll", func(t *testing.T) {
		if err := adapter.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		adapter.StoreEntity(ctx, graph.Entity{ID: "a", Type: "function", Name: "A"})
		adapter.StoreEntity(ctx, graph.Entity{ID: "b", Type: "function", Name: "B"})
		adapter.StoreRelationship(ctx, graph.Relationship{ID: "r1", Type: "calls", SourceID: "a", TargetID: "b"})

		stats, err := adapter.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if stats.EntityCount != 2 || stats.RelationshipCount != 1 {
			t.Errorf("Stats = %+v, want 2 entities / 1 relationship", stats)
		}

		entities, err := adapter.AllEntities(ctx)
		if err != nil {
			t.Fatalf("AllEntities: %v", err)
		}
		if len(entities) != 2 {
			t.Errorf("AllEntities = %d, want 2", len(entities))
		}
		relationships, err := adapter.AllRelationships(ctx)
		if err != nil {
			t.Fatalf("AllRelationships: %v", err)
		}
		if len(relationships) != 1 {
			t.Errorf("AllRelationships = %d, want 1", len(relationships))
		}
	})
}
