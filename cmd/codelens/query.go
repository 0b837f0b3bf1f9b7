package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"codelens/internal/graph"
	"codelens/internal/similarity"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show graph statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kg, closer, err := openGraph()
		if err != nil {
			return err
		}
		defer closer()

		if err := kg.RebuildCache(cmd.Context()); err != nil {
			return err
		}
		stats, err := kg.Stats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Entities:             %d\n", stats.EntityCount)
		fmt.Printf("Relationships:        %d\n", stats.RelationshipCount)
		fmt.Printf("Average out-degree:   %.2f\n", stats.AverageOutDegree)
		fmt.Printf("Max out-degree:       %d\n", stats.MaxOutDegree)
		fmt.Printf("Connected components: %d\n", stats.ConnectedComponents)
		return nil
	},
}

var pathMaxDepth int

var pathCmd = &cobra.Command{
	Use:   "path <source-id> <target-id>",
	Short: "Find the shortest path between two entities",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kg, closer, err := openGraph()
		if err != nil {
			return err
		}
		defer closer()

		if err := kg.RebuildCache(cmd.Context()); err != nil {
			return err
		}
		result, err := kg.FindPath(cmd.Context(), args[0], args[1], pathMaxDepth)
		if err != nil {
			return err
		}
		if result == nil {
			fmt.Printf("No path from %s to %s within %d hops\n", args[0], args[1], pathMaxDepth)
			return nil
		}

		names := make([]string, 0, len(result.Path))
		for _, e := range result.Path {
			names = append(names, fmt.Sprintf("%s (%s)", e.Name, e.ID))
		}
		fmt.Printf("Path (%d hops): %s\n", result.Distance, strings.Join(names, " -> "))
		for _, r := range result.Relationships {
			fmt.Printf("  %s -[%s]-> %s\n", r.SourceID, r.Type, r.TargetID)
		}
		return nil
	},
}

var (
	neighborDepth int
	neighborTypes []string
)

var neighborsCmd = &cobra.Command{
	Use:   "neighbors <entity-id>",
	Short: "List entities reachable from an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kg, closer, err := openGraph()
		if err != nil {
			return err
		}
		defer closer()

		if err := kg.RebuildCache(cmd.Context()); err != nil {
			return err
		}
		entities, err := kg.Neighbors(cmd.Context(), args[0], graph.NeighborOptions{
			MaxDepth:          neighborDepth,
			RelationshipTypes: neighborTypes,
		})
		if err != nil {
			return err
		}

		if len(entities) == 0 {
			fmt.Println("No neighbors found")
			return nil
		}
		for _, e := range entities {
			fmt.Printf("%s\t%s\t%s\n", e.ID, e.Type, e.Name)
		}
		return nil
	},
}

var (
	searchTypes   []string
	searchLimit   int
	searchAsJSON  bool
	searchWithRel bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search entities and relationships",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kg, closer, err := openGraph()
		if err != nil {
			return err
		}
		defer closer()

		result, err := kg.Search(cmd.Context(), args[0], graph.SearchOptions{
			EntityTypes:          searchTypes,
			Limit:                searchLimit,
			IncludeRelationships: searchWithRel,
		})
		if err != nil {
			return err
		}

		if searchAsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		for _, e := range result.Entities {
			fmt.Printf("%s\t%s\t%s\n", e.ID, e.Type, e.Name)
		}
		for _, r := range result.Relationships {
			fmt.Printf("%s\t%s -[%s]-> %s\n", r.ID, r.SourceID, r.Type, r.TargetID)
		}
		return nil
	},
}

var (
	similarLimit  int
	similarMetric string
)

var similarCmd = &cobra.Command{
	Use:   "similar <entity-id>",
	Short: "Rank entities by embedding similarity to an entity",
	Long: `Ranks entities whose metadata carries an "embedding" vector by closeness
to the given entity's embedding. Entities without an embedding are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kg, closer, err := openGraph()
		if err != nil {
			return err
		}
		defer closer()

		matches, err := kg.SimilarEntities(cmd.Context(), args[0], similarLimit, similarity.Metric(similarMetric))
		if err != nil {
			return err
		}

		if len(matches) == 0 {
			fmt.Println("No embedded entities to compare against")
			return nil
		}
		for _, m := range matches {
			fmt.Printf("%.4f\t%s\t%s\t%s\n", m.Score, m.Entity.ID, m.Entity.Type, m.Entity.Name)
		}
		return nil
	},
}

func init() {
	pathCmd.Flags().IntVar(&pathMaxDepth, "max-depth", graph.DefaultMaxPathDepth, "maximum path length in hops")
	neighborsCmd.Flags().IntVar(&neighborDepth, "depth", 1, "expansion depth in hops")
	neighborsCmd.Flags().StringSliceVar(&neighborTypes, "types", nil, "restrict to relationship types")
	searchCmd.Flags().StringSliceVar(&searchTypes, "types", nil, "restrict to entity types")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "maximum results")
	searchCmd.Flags().BoolVar(&searchAsJSON, "json", false, "emit JSON")
	searchCmd.Flags().BoolVar(&searchWithRel, "relationships", false, "include matching relationships")
	similarCmd.Flags().IntVar(&similarLimit, "limit", 10, "maximum results")
	similarCmd.Flags().StringVar(&similarMetric, "metric", string(similarity.MetricCosine), "distance metric: cosine, euclidean, manhattan")
}
