package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codelens/internal/graph"
	"codelens/internal/optimizer"
)

var (
	optTargetTokens  int
	optComponentID   string
	optFormat        string
	optIncludeCode   bool
	optIncludeRels   bool
	optNeighborDepth int
	optLimit         int
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <query>",
	Short: "Assemble and optimize context for a query under a token budget",
	Long: `Searches the graph for entities matching the query, expands their
neighborhoods, then runs the optimization pipeline (relevance scoring,
filtering, window sizing) to produce token-bounded context.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kg, closer, err := openGraph()
		if err != nil {
			return err
		}
		defer closer()

		if err := kg.RebuildCache(cmd.Context()); err != nil {
			return err
		}

		data, err := assembleContext(cmd.Context(), kg, args[0])
		if err != nil {
			return err
		}

		opt := optimizer.New(cfg.Optimizer)
		result, err := opt.Optimize(cmd.Context(), data, optimizer.Query{
			Query:       args[0],
			ComponentID: optComponentID,
		}, optimizer.Options{
			TargetTokens:         optTargetTokens,
			IncludeSourceCode:    optIncludeCode,
			IncludeRelationships: optIncludeRels,
			OutputFormat:         optimizer.OutputFormat(optFormat),
		})
		if err != nil {
			return err
		}

		logger.Info("optimization finished",
			zap.Int("originalTokens", result.OriginalTokens),
			zap.Int("finalTokens", result.FinalTokens),
			zap.Int("itemsRemoved", result.ItemsRemoved),
			zap.Strings("strategies", result.StrategiesApplied))
		for _, w := range result.Warnings {
			logger.Warn(w)
		}

		rendered, err := optimizer.Serialize(result.Data, optimizer.OutputFormat(optFormat))
		if err != nil {
			return err
		}
		fmt.Println(rendered)
		return nil
	},
}

// assembleContext gathers the candidate item set: entities matching the
// query plus their immediate neighborhoods, and the relationships among the
// collected set.
func assembleContext(ctx context.Context, kg *graph.KnowledgeGraph, query string) (optimizer.Data, error) {
	found, err := kg.Search(ctx, query, graph.SearchOptions{Limit: optLimit})
	if err != nil {
		return optimizer.Data{}, err
	}

	collected := make(map[string]graph.Entity, len(found.Entities))
	for _, e := range found.Entities {
		collected[e.ID] = e
		neighbors, err := kg.Neighbors(ctx, e.ID, graph.NeighborOptions{MaxDepth: optNeighborDepth})
		if err != nil {
			return optimizer.Data{}, err
		}
		for _, n := range neighbors {
			collected[n.ID] = n
		}
	}

	data := optimizer.Data{}
	for _, e := range collected {
		data.Items = append(data.Items, entityToItem(e))
	}
	for id := range collected {
		for _, targetID := range kg.OutgoingSnapshot(id) {
			if _, ok := collected[targetID]; !ok {
				continue
			}
			rel, err := kg.RelationshipBetween(ctx, id, targetID)
			if err != nil {
				return optimizer.Data{}, err
			}
			if rel == nil {
				continue
			}
			data.Relationships = append(data.Relationships, optimizer.Relationship{
				ID:       rel.ID,
				SourceID: rel.SourceID,
				TargetID: rel.TargetID,
				Type:     rel.Type,
				Metadata: rel.Metadata,
			})
		}
	}
	return data, nil
}

// entityToItem projects a graph entity into a pipeline item, lifting the
// well-known code/content/filePath metadata fields.
func entityToItem(e graph.Entity) optimizer.Item {
	item := optimizer.Item{
		ID:       e.ID,
		Name:     e.Name,
		Type:     e.Type,
		Metadata: e.Metadata,
	}
	if e.Metadata != nil {
		if v, ok := e.Metadata["filePath"].(string); ok {
			item.FilePath = v
		}
		if v, ok := e.Metadata["code"].(string); ok {
			item.Code = v
		}
		if v, ok := e.Metadata["content"].(string); ok {
			item.Content = v
		}
	}
	return item
}

func init() {
	optimizeCmd.Flags().IntVar(&optTargetTokens, "target-tokens", 4000, "token budget for the optimized context")
	optimizeCmd.Flags().StringVar(&optComponentID, "component", "", "protected component id, always kept")
	optimizeCmd.Flags().StringVar(&optFormat, "format", "json", "output format: json, markdown, text")
	optimizeCmd.Flags().BoolVar(&optIncludeCode, "code", true, "include source code in priority weighting")
	optimizeCmd.Flags().BoolVar(&optIncludeRels, "relationships", true, "include relationships in output")
	optimizeCmd.Flags().IntVar(&optNeighborDepth, "depth", 1, "neighborhood expansion depth")
	optimizeCmd.Flags().IntVar(&optLimit, "limit", 25, "maximum seed entities from search")
}
