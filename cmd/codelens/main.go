package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codelens/internal/config"
	"codelens/internal/graph"
	"codelens/internal/logging"
	"codelens/internal/storage"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dbPath     string

	// Loaded configuration
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "codelens",
	Short: "codelens - code knowledge graph and context optimizer",
	Long: `codelens ingests parsed source-code entities and relationships into a
knowledge graph, then selects, scores, and compresses subsets of that graph
to fit a token budget for LLM consumption.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewDevelopmentConfig()
		if !verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		} else {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Storage.DatabasePath = dbPath
		}

		if err := logging.Initialize("."); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// openGraph builds the knowledge graph over the configured storage backend.
// The returned closer releases the backend when it holds resources.
func openGraph() (*graph.KnowledgeGraph, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		return graph.New(storage.NewMemoryAdapter()), func() {}, nil
	case "sqlite", "":
		adapter, err := storage.NewSQLiteAdapter(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening storage at %s: %w", cfg.Storage.DatabasePath, err)
		}
		return graph.New(adapter), func() { _ = adapter.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".codelens/config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "override database path")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(neighborsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(optimizeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
