package optimizer

import (
	"math"
	"sort"

	"codelens/internal/logging"
)

// ============================================================================
// FILTERING & COMPRESSION
// ============================================================================
// Drops low-relevance items subject to a minimum-retention floor,
// deduplicates colliding items, and truncates oversized prose fields. Each
// operation is independently callable; Process chains them.

// FilterConfig tunes the filter/compression stage.
type FilterConfig struct {
	RelevanceThreshold   float64 `yaml:"relevance_threshold"`
	MinRetention         float64 `yaml:"min_retention"`
	MaxDescriptionLength int     `yaml:"max_description_length"`
}

// DefaultFilterConfig returns the calibrated defaults.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		RelevanceThreshold:   1.0,
		MinRetention:         0.3,
		MaxDescriptionLength: 500,
	}
}

// RelevanceFilter is the filter/compression pipeline stage.
type RelevanceFilter struct {
	cfg FilterConfig
}

// NewRelevanceFilter creates a filter with the given config.
func NewRelevanceFilter(cfg FilterConfig) *RelevanceFilter {
	if cfg.MinRetention <= 0 {
		cfg.MinRetention = 0.3
	}
	return &RelevanceFilter{cfg: cfg}
}

func (f *RelevanceFilter) Name() string { return "relevance-filtering" }

// Process runs dedupe, threshold filtering, and description compression in
// sequence and records the step.
func (f *RelevanceFilter) Process(data Data) Data {
	timer := logging.StartTimer(logging.CategoryOptimizer, "relevance filtering")
	defer timer.Stop()

	before := len(data.Items)
	out := f.RemoveDuplicates(data)
	out = f.Filter(out, f.cfg.RelevanceThreshold, f.cfg.MinRetention)
	out = f.Compress(out, f.cfg.MaxDescriptionLength)

	logging.OptimizerDebug("Filtering kept %d/%d items", len(out.Items), before)
	return out.WithStep(f.Name(), nil)
}

// Filter drops items scoring below the threshold. When that would retain
// fewer than minRetention of the original set, the top ceil(minRetention*n)
// items by score are kept instead, threshold notwithstanding. Surviving
// relationships must have both endpoints in the kept set.
func (f *RelevanceFilter) Filter(data Data, threshold, minRetention float64) Data {
	if len(data.Items) == 0 {
		return data
	}

	kept := make([]Item, 0, len(data.Items))
	for _, item := range data.Items {
		if item.RelevanceScore() >= threshold {
			kept = append(kept, item)
		}
	}

	floor := int(math.Ceil(minRetention * float64(len(data.Items))))
	if len(kept) < floor {
		ranked := make([]Item, len(data.Items))
		copy(ranked, data.Items)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].RelevanceScore() > ranked[j].RelevanceScore()
		})
		if floor > len(ranked) {
			floor = len(ranked)
		}
		kept = ranked[:floor]
		logging.OptimizerDebug("Threshold %.2f retained too few items, keeping top %d by score", threshold, floor)
	}

	out := data
	out.Items = kept
	out.Relationships = filterValidRelationships(data.Relationships, kept)
	return out
}

// Compress truncates description and documentation metadata strings that
// exceed maxLength, appending an ellipsis. Absent or short values pass
// through untouched.
func (f *RelevanceFilter) Compress(data Data, maxLength int) Data {
	if maxLength <= 0 {
		return data
	}

	items := make([]Item, 0, len(data.Items))
	for _, item := range data.Items {
		entries := map[string]interface{}{}
		for _, key := range []string{"description", "documentation"} {
			if v := metaString(item.Metadata, key); len(v) > maxLength {
				entries[key] = truncateString(v, maxLength)
			}
		}
		if len(entries) > 0 {
			item = item.WithMetadata(entries)
		}
		items = append(items, item)
	}

	out := data
	out.Items = items
	return out
}

// RemoveDuplicates collapses items sharing the identity key name+type+filePath.
// The variant with the larger combined code+content length wins; metadata
// from the discarded variant merges into the kept one with the newer entry
// winning on conflict.
func (f *RelevanceFilter) RemoveDuplicates(data Data) Data {
	type entry struct {
		item Item
	}
	seen := make(map[string]*entry, len(data.Items))
	order := make([]*entry, 0, len(data.Items))
	dropped := make(map[string]*entry) // dropped id -> surviving entry

	for _, item := range data.Items {
		key := item.Name + "\x00" + item.Type + "\x00" + item.FilePath
		existing, ok := seen[key]
		if !ok {
			s := &entry{item: item}
			seen[key] = s
			order = append(order, s)
			continue
		}

		prev := existing.item
		if len(item.Code)+len(item.Content) > len(prev.Code)+len(prev.Content) {
			merged := item.WithMetadata(nil)
			for k, v := range prev.Metadata {
				if _, exists := merged.Metadata[k]; !exists {
					merged.Metadata[k] = v
				}
			}
			dropped[prev.ID] = existing
			existing.item = merged
		} else {
			existing.item = prev.WithMetadata(item.Metadata)
			dropped[item.ID] = existing
		}
	}

	if len(dropped) == 0 {
		return data
	}

	items := make([]Item, 0, len(order))
	for _, s := range order {
		items = append(items, s.item)
	}

	// Re-point relationships at surviving ids before validity filtering. The
	// survivor for a key can change more than once, so resolution goes through
	// the entry, which always holds the final winner.
	relationships := make([]Relationship, 0, len(data.Relationships))
	for _, rel := range data.Relationships {
		if e, ok := dropped[rel.SourceID]; ok {
			rel.SourceID = e.item.ID
		}
		if e, ok := dropped[rel.TargetID]; ok {
			rel.TargetID = e.item.ID
		}
		relationships = append(relationships, rel)
	}

	out := data
	out.Items = items
	out.Relationships = filterValidRelationships(relationships, items)
	return out
}
