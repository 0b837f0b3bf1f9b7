package optimizer

import (
	"context"
	"time"

	"codelens/internal/logging"
)

// ============================================================================
// CONTENT OPTIMIZER
// ============================================================================
// Orchestrates the full pipeline: relevance scoring, filtering/compression,
// and window-size enforcement, in that fixed order. Each stage completes
// before the next begins.

// Config aggregates the per-stage configuration.
type Config struct {
	Processors ProcessorConfig `yaml:"processors"`
	Relevance  RelevanceConfig `yaml:"relevance"`
	Filter     FilterConfig    `yaml:"filter"`
	Window     WindowConfig    `yaml:"window"`
}

// DefaultConfig returns defaults for every stage.
func DefaultConfig() Config {
	return Config{
		Processors: DefaultProcessorConfig(),
		Relevance:  DefaultRelevanceConfig(),
		Filter:     DefaultFilterConfig(),
		Window:     DefaultWindowConfig(),
	}
}

// Optimizer runs the context optimization pipeline.
type Optimizer struct {
	registry *Registry
	scorer   *RelevanceScorer
	filter   *RelevanceFilter
	window   *WindowProcessor
}

// New creates an optimizer from the given config. An invalid processor
// config falls back to defaults with a warning rather than failing.
func New(cfg Config) *Optimizer {
	if msg := cfg.Processors.Validate(); msg != "" {
		logging.OptimizerWarn("Invalid processor config (%s), using defaults", msg)
		cfg.Processors = DefaultProcessorConfig()
	}
	registry := NewRegistry(cfg.Processors)
	return &Optimizer{
		registry: registry,
		scorer:   NewRelevanceScorer(cfg.Relevance),
		filter:   NewRelevanceFilter(cfg.Filter),
		window:   NewWindowProcessor(cfg.Window, registry),
	}
}

// Registry exposes the processor registry, mainly for callers estimating
// token costs outside a pipeline run.
func (o *Optimizer) Registry() *Registry {
	return o.registry
}

// Optimize runs the full pipeline over the data set and reports before/after
// token counts, removals, and the strategies applied. Degenerate inputs
// (zero items, tiny budgets) yield warnings on a successful result.
func (o *Optimizer) Optimize(ctx context.Context, data Data, query Query, opts Options) (*Result, error) {
	start := time.Now()
	timer := logging.StartTimer(logging.CategoryOptimizer, "optimize pipeline")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	original := o.window.EstimateContextTokens(data)
	logging.Optimizer("Optimizing %d items, %d relationships (%d estimated tokens, target %d)",
		len(data.Items), len(data.Relationships), original, opts.TargetTokens)

	result := &Result{OriginalTokens: original}
	if len(data.Items) == 0 {
		result.Warnings = append(result.Warnings, "no items to optimize")
	}
	if deriveQueryText(query) == "" {
		result.Warnings = append(result.Warnings, "empty query, scoring on type weights only")
	}

	scored := o.scorer.Process(data, query)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filtered := o.filter.Process(scored)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !opts.IncludeRelationships {
		filtered.Relationships = nil
	}

	outcome := o.window.Process(filtered, query, opts)

	result.Data = outcome.Data
	result.FinalTokens = o.window.EstimateContextTokens(outcome.Data)
	result.ItemsRemoved = len(data.Items) - len(outcome.Data.Items)
	result.RelationshipsRemoved = len(data.Relationships) - len(outcome.Data.Relationships)
	result.StrategiesApplied = outcome.StrategiesApplied
	result.Warnings = append(result.Warnings, outcome.Warnings...)
	result.ProcessingTime = time.Since(start)

	logging.Optimizer("Optimization complete: %d -> %d tokens, removed %d items, %d relationships in %s",
		result.OriginalTokens, result.FinalTokens, result.ItemsRemoved, result.RelationshipsRemoved,
		result.ProcessingTime)
	return result, nil
}
