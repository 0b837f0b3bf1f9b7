package optimizer

import (
	"encoding/json"
	"fmt"
	"sort"

	"codelens/internal/logging"
)

// ============================================================================
// WINDOW SIZE ENFORCEMENT
// ============================================================================
// Guarantees the final serialized context fits the caller's token budget,
// applying the least destructive sufficient strategy. Strategies run in a
// fixed order, each re-checked against the budget before the next fires.

// serializationOverhead approximates JSON framing cost on top of the raw
// field estimates.
const serializationOverhead = 1.2

// WindowConfig tunes the window-size stage.
type WindowConfig struct {
	Enabled bool `yaml:"enabled"`

	Strategies struct {
		RemoveDuplicates       bool `yaml:"remove_duplicates"`
		TruncateDescriptions   bool `yaml:"truncate_descriptions"`
		SummarizeCodeBlocks    bool `yaml:"summarize_code_blocks"`
		RemoveLowPriorityItems bool `yaml:"remove_low_priority_items"`
	} `yaml:"strategies"`

	MinimumThresholds struct {
		MinItems int `yaml:"min_items"`
	} `yaml:"minimum_thresholds"`

	CharsPerToken float64 `yaml:"chars_per_token"`
}

// DefaultWindowConfig enables every strategy with a one-item floor.
func DefaultWindowConfig() WindowConfig {
	cfg := WindowConfig{Enabled: true, CharsPerToken: 4.0}
	cfg.Strategies.RemoveDuplicates = true
	cfg.Strategies.TruncateDescriptions = true
	cfg.Strategies.SummarizeCodeBlocks = true
	cfg.Strategies.RemoveLowPriorityItems = true
	cfg.MinimumThresholds.MinItems = 1
	return cfg
}

// WindowProcessor enforces the token budget over a data set.
type WindowProcessor struct {
	cfg      WindowConfig
	registry *Registry
	filter   *RelevanceFilter
}

// NewWindowProcessor creates a window processor backed by the given registry.
func NewWindowProcessor(cfg WindowConfig, registry *Registry) *WindowProcessor {
	if cfg.MinimumThresholds.MinItems < 1 {
		cfg.MinimumThresholds.MinItems = 1
	}
	if cfg.CharsPerToken <= 0 {
		cfg.CharsPerToken = 4.0
	}
	return &WindowProcessor{
		cfg:      cfg,
		registry: registry,
		filter:   NewRelevanceFilter(DefaultFilterConfig()),
	}
}

func (w *WindowProcessor) Name() string { return "window-sizing" }

// windowOutcome carries the stage report back to the orchestrator.
type windowOutcome struct {
	Data              Data
	StrategiesApplied []string
	Warnings          []string
}

// Process shrinks data until its token estimate fits opts.TargetTokens.
// Degenerate inputs produce warnings, never errors.
func (w *WindowProcessor) Process(data Data, query Query, opts Options) windowOutcome {
	timer := logging.StartTimer(logging.CategoryOptimizer, "window sizing")
	defer timer.Stop()

	outcome := windowOutcome{Data: data}
	if !w.cfg.Enabled {
		outcome.Warnings = append(outcome.Warnings, "window sizing disabled by configuration, passing through")
		outcome.Data = data.WithStep(w.Name(), nil)
		return outcome
	}

	target := opts.TargetTokens
	if target <= 0 {
		outcome.Warnings = append(outcome.Warnings,
			fmt.Sprintf("non-positive token target %d, passing through", target))
		outcome.Data = data.WithStep(w.Name(), nil)
		return outcome
	}

	current := w.EstimateContextTokens(data)
	logging.OptimizerDebug("Window sizing: %d estimated tokens against target %d", current, target)
	if current <= target {
		outcome.Data = data.WithStep(w.Name(), nil)
		return outcome
	}

	working := data
	apply := func(name string, fn func(Data) Data) bool {
		working = fn(working)
		outcome.StrategiesApplied = append(outcome.StrategiesApplied, name)
		current = w.EstimateContextTokens(working)
		logging.OptimizerDebug("Strategy %s: %d tokens remaining", name, current)
		return current <= target
	}

	done := false
	switch {
	case w.cfg.Strategies.RemoveDuplicates && apply("removeDuplicates", w.filter.RemoveDuplicates):
		done = true
	case w.cfg.Strategies.TruncateDescriptions && apply("truncateDescriptions", func(d Data) Data {
		return w.reduceAll(d, 0.3)
	}):
		done = true
	case w.cfg.Strategies.SummarizeCodeBlocks && apply("summarizeCodeBlocks", func(d Data) Data {
		return w.reduceAll(d, 0.5)
	}):
		done = true
	case w.cfg.Strategies.RemoveLowPriorityItems && apply("removeLowPriorityItems", func(d Data) Data {
		return w.removeLowPriorityItems(d, query, target)
	}):
		done = true
	}

	if !done && current > target {
		working = w.removeLowestPriorityItems(working, query, opts, target)
		outcome.StrategiesApplied = append(outcome.StrategiesApplied, "removeLowestPriorityItems")
		current = w.EstimateContextTokens(working)
	}

	if current > target {
		outcome.Warnings = append(outcome.Warnings,
			fmt.Sprintf("kept minimum %d items despite exceeding token target (%d > %d)",
				len(working.Items), current, target))
	}

	outcome.Data = working.WithStep(w.Name(), nil)
	return outcome
}

// EstimateItemTokens delegates to the item's processor.
func (w *WindowProcessor) EstimateItemTokens(item Item) int {
	return w.registry.ProcessorFor(item.Type).EstimateTokens(item)
}

// EstimateRelationshipTokens uses a fixed heuristic over the edge's string
// fields and stringified metadata.
func (w *WindowProcessor) EstimateRelationshipTokens(rel Relationship) int {
	chars := len(rel.ID) + len(rel.Type) + len(rel.SourceID) + len(rel.TargetID)
	if len(rel.Metadata) > 0 {
		if raw, err := json.Marshal(rel.Metadata); err == nil {
			chars += len(raw)
		}
	}
	return estimateTokens(chars, w.cfg.CharsPerToken)
}

// EstimateContextTokens sums item and relationship estimates plus the
// serialization overhead surcharge.
func (w *WindowProcessor) EstimateContextTokens(data Data) int {
	total := 0
	for _, item := range data.Items {
		total += w.EstimateItemTokens(item)
	}
	for _, rel := range data.Relationships {
		total += w.EstimateRelationshipTokens(rel)
	}
	return int(float64(total) * serializationOverhead)
}

// reduceAll applies each item's processor reduction at the given factor.
func (w *WindowProcessor) reduceAll(data Data, factor float64) Data {
	items := make([]Item, 0, len(data.Items))
	for _, item := range data.Items {
		proc := w.registry.ProcessorFor(item.Type)
		if proc.CanReduce(item) {
			item = proc.ReduceContent(item, factor)
		}
		items = append(items, item)
	}
	out := data
	out.Items = items
	return out
}

// removeLowPriorityItems keeps the protected item plus the highest-priority
// items whose running token total stays within target, never dropping below
// the minimum-items floor.
func (w *WindowProcessor) removeLowPriorityItems(data Data, query Query, target int) Data {
	ranked := w.rankByPriority(data)

	kept := make([]Item, 0, len(ranked))
	total := 0
	for _, item := range ranked {
		if item.ID == query.ComponentID && query.ComponentID != "" {
			kept = append(kept, item)
			total += w.EstimateItemTokens(item)
		}
	}
	for _, item := range ranked {
		if item.ID == query.ComponentID && query.ComponentID != "" {
			continue
		}
		cost := w.EstimateItemTokens(item)
		if total+cost <= target || len(kept) < w.cfg.MinimumThresholds.MinItems {
			kept = append(kept, item)
			total += cost
		}
	}

	out := data
	out.Items = kept
	out.Relationships = filterValidRelationships(data.Relationships, kept)
	return out
}

// slot is one candidate in the final safety-net pass: an item or a
// relationship with a cost and a priority.
type slot struct {
	item      *Item
	rel       *Relationship
	tokens    int
	priority  float64
	protected bool
}

// removeLowestPriorityItems is the last-resort pass: items and relationships
// compete in one combined priority queue for the remaining budget. Protected
// slots are always accepted, even when individually over budget.
func (w *WindowProcessor) removeLowestPriorityItems(data Data, query Query, opts Options, target int) Data {
	slots := make([]slot, 0, len(data.Items)+len(data.Relationships))

	for i := range data.Items {
		item := &data.Items[i]
		proc := w.registry.ProcessorFor(item.Type)
		priority := proc.CalculatePriority(*item, data)
		if opts.IncludeSourceCode && item.Code != "" {
			priority *= 2
		}
		slots = append(slots, slot{
			item:      item,
			tokens:    w.EstimateItemTokens(*item),
			priority:  priority,
			protected: query.ComponentID != "" && item.ID == query.ComponentID,
		})
	}
	for i := range data.Relationships {
		rel := &data.Relationships[i]
		slots = append(slots, slot{
			rel:    rel,
			tokens: w.EstimateRelationshipTokens(*rel),
		})
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].protected != slots[j].protected {
			return slots[i].protected
		}
		return slots[i].priority > slots[j].priority
	})

	budget := int(float64(target) / serializationOverhead)
	kept := make([]Item, 0, len(data.Items))
	keptRels := make([]Relationship, 0, len(data.Relationships))
	total := 0
	for _, s := range slots {
		accept := s.protected ||
			total+s.tokens <= budget ||
			(s.item != nil && len(kept) < w.cfg.MinimumThresholds.MinItems)
		if !accept {
			continue
		}
		total += s.tokens
		if s.item != nil {
			kept = append(kept, *s.item)
		} else {
			keptRels = append(keptRels, *s.rel)
		}
	}

	out := data
	out.Items = kept
	out.Relationships = filterValidRelationships(keptRels, kept)
	return out
}

// rankByPriority returns the items sorted by processor priority descending,
// ties broken by ascending ID.
func (w *WindowProcessor) rankByPriority(data Data) []Item {
	ranked := make([]Item, len(data.Items))
	copy(ranked, data.Items)
	priorities := make(map[string]float64, len(ranked))
	for _, item := range ranked {
		priorities[item.ID] = w.registry.ProcessorFor(item.Type).CalculatePriority(item, data)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := priorities[ranked[i].ID], priorities[ranked[j].ID]
		if pi != pj {
			return pi > pj
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}
