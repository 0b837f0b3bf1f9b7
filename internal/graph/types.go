// Package graph maintains an addressable, queryable view of code entities and
// their relationships over a pluggable storage adapter, with an in-memory
// adjacency cache used to accelerate traversal.
package graph

import (
	"context"
	"fmt"
)

// Entity is a graph node: a parsed source-code component (function, class,
// file, module) or any other addressable unit. Identity is the ID; no two
// entities share an ID within one graph instance.
type Entity struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Name     string                 `json:"name"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Relationship is a directed graph edge from SourceID to TargetID.
// Endpoints should reference existing entity IDs, but referential integrity
// is not hard-enforced on write; the storage adapter may be authoritative.
type Relationship struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	SourceID string                 `json:"sourceId"`
	TargetID string                 `json:"targetId"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// OperationResult is the outcome contract for every mutating storage call.
type OperationResult struct {
	Success  bool
	Affected int
	Error    string
}

// Err converts a failed result into an error, nil on success.
func (r OperationResult) Err() error {
	if r.Success {
		return nil
	}
	if r.Error == "" {
		return fmt.Errorf("storage operation failed")
	}
	return fmt.Errorf("storage operation failed: %s", r.Error)
}

// EntitySearch describes entity search criteria. Zero-valued fields are
// ignored. Metadata entries match by equality on the stringified value.
type EntitySearch struct {
	ID       string
	Type     string
	Name     string
	Query    string // Free-text substring over name and stringified metadata
	Metadata map[string]interface{}
	Limit    int
	Offset   int
}

// RelationshipSearch describes relationship search criteria.
type RelationshipSearch struct {
	ID       string
	Type     string
	SourceID string
	TargetID string
	Metadata map[string]interface{}
	Limit    int
	Offset   int
}

// StorageStats is the raw count view reported by a storage adapter.
type StorageStats struct {
	EntityCount       int
	RelationshipCount int
}

// Adapter is the storage contract the graph is layered over. Mutating methods
// report through OperationResult; read methods return (nil, nil) for a clean
// miss and a non-nil error only for storage failures.
type Adapter interface {
	StoreEntity(ctx context.Context, e Entity) OperationResult
	GetEntity(ctx context.Context, id string) (*Entity, error)
	UpdateEntity(ctx context.Context, id string, partial Entity) OperationResult
	DeleteEntity(ctx context.Context, id string) OperationResult
	SearchEntities(ctx context.Context, criteria EntitySearch) ([]Entity, error)

	StoreRelationship(ctx context.Context, r Relationship) OperationResult
	GetRelationship(ctx context.Context, id string) (*Relationship, error)
	DeleteRelationship(ctx context.Context, id string) OperationResult
	SearchRelationships(ctx context.Context, criteria RelationshipSearch) ([]Relationship, error)

	Stats(ctx context.Context) (StorageStats, error)
	Clear(ctx context.Context) error
	AllEntities(ctx context.Context) ([]Entity, error)
	AllRelationships(ctx context.Context) ([]Relationship, error)
}

// NotFoundError marks operations referencing an absent entity or relationship.
type NotFoundError struct {
	Kind string // "entity" or "relationship"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Stats summarizes graph shape. Degrees are measured over the out-adjacency
// cache; ConnectedComponents treats the graph as undirected, with every
// zero-degree entity counted as its own component.
type Stats struct {
	EntityCount         int     `json:"entityCount"`
	RelationshipCount   int     `json:"relationshipCount"`
	AverageOutDegree    float64 `json:"averageOutDegree"`
	MaxOutDegree        int     `json:"maxOutDegree"`
	ConnectedComponents int     `json:"connectedComponents"`
}

// PathResult is a shortest hop-count path between two entities.
type PathResult struct {
	Path          []Entity       `json:"path"`
	Relationships []Relationship `json:"relationships"`
	Distance      int            `json:"distance"`
}

// NeighborOptions bounds a neighbor expansion.
type NeighborOptions struct {
	MaxDepth          int      // Default 1
	RelationshipTypes []string // Empty = all types
}
