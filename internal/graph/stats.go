package graph

import (
	"context"
	"fmt"

	"codelens/internal/logging"
)

// Stats reports entity/relationship counts from storage together with degree
// and connectivity measures computed over the adjacency cache.
func (g *KnowledgeGraph) Stats(ctx context.Context) (*Stats, error) {
	timer := logging.StartTimer(logging.CategoryGraph, "Stats")
	defer timer.Stop()

	storageStats, err := g.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage stats failed: %w", err)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	maxOut := 0
	totalOut := 0
	for _, targets := range g.outgoing {
		degree := len(targets)
		totalOut += degree
		if degree > maxOut {
			maxOut = degree
		}
	}

	avgOut := 0.0
	if storageStats.EntityCount > 0 {
		avgOut = float64(totalOut) / float64(storageStats.EntityCount)
	}

	return &Stats{
		EntityCount:         storageStats.EntityCount,
		RelationshipCount:   storageStats.RelationshipCount,
		AverageOutDegree:    avgOut,
		MaxOutDegree:        maxOut,
		ConnectedComponents: g.connectedComponentsLocked(storageStats.EntityCount),
	}, nil
}

// connectedComponentsLocked counts components of the graph projected to
// undirected (union of outgoing and incoming adjacency per node). Entities
// present in storage's total count but absent from both adjacency maps are
// zero-degree and each form their own component. Caller holds g.mu.
func (g *KnowledgeGraph) connectedComponentsLocked(entityCount int) int {
	// Undirected projection.
	undirected := make(map[string]map[string]struct{})
	link := func(a, b string) {
		if undirected[a] == nil {
			undirected[a] = make(map[string]struct{})
		}
		undirected[a][b] = struct{}{}
	}
	for source, targets := range g.outgoing {
		for target := range targets {
			link(source, target)
			link(target, source)
		}
	}
	for target, sources := range g.incoming {
		for source := range sources {
			link(source, target)
			link(target, source)
		}
	}

	visited := make(map[string]bool, len(undirected))
	components := 0
	for node := range undirected {
		if visited[node] {
			continue
		}
		components++
		queue := []string{node}
		visited[node] = true
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for neighbor := range undirected[current] {
				if !visited[neighbor] {
					visited[neighbor] = true
					queue = append(queue, neighbor)
				}
			}
		}
	}

	// Zero-degree entities never enter the adjacency maps.
	isolated := entityCount - len(undirected)
	if isolated > 0 {
		components += isolated
	}

	return components
}
