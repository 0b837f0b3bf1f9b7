package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"codelens/internal/graph"
)

// ingestFile is the on-disk shape of a parsed-source export: entities plus
// the relationships between them.
type ingestFile struct {
	Entities      []graph.Entity       `json:"entities"`
	Relationships []graph.Relationship `json:"relationships"`
}

var ingestWorkers int

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.json> [file.json...]",
	Short: "Load entities and relationships from JSON exports into the graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kg, closer, err := openGraph()
		if err != nil {
			return err
		}
		defer closer()

		// Parse files in parallel; graph writes are serialized below since
		// concurrent mutations against one graph instance must not race.
		parsed := make([]ingestFile, len(args))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(ingestWorkers)
		for i, path := range args {
			i, path := i, path
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				raw, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				var file ingestFile
				if err := json.Unmarshal(raw, &file); err != nil {
					return fmt.Errorf("parsing %s: %w", path, err)
				}
				parsed[i] = file
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		entities, relationships := 0, 0
		for _, file := range parsed {
			for _, e := range file.Entities {
				if e.ID == "" {
					e.ID = uuid.NewString()
				}
				if err := kg.AddEntity(cmd.Context(), e); err != nil {
					return fmt.Errorf("adding entity %s: %w", e.ID, err)
				}
				entities++
			}
			for _, r := range file.Relationships {
				if r.ID == "" {
					r.ID = uuid.NewString()
				}
				if err := kg.AddRelationship(cmd.Context(), r); err != nil {
					return fmt.Errorf("adding relationship %s: %w", r.ID, err)
				}
				relationships++
			}
		}

		logger.Info("ingest complete",
			zap.Int("files", len(args)),
			zap.Int("entities", entities),
			zap.Int("relationships", relationships))
		fmt.Printf("Ingested %d entities and %d relationships from %d file(s)\n",
			entities, relationships, len(args))
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 4, "parallel file parsers")
}
