// Package optimizer implements the context window optimization pipeline:
// relevance scoring, filtering/compression, and window-size enforcement over
// a set of context items and relationships, producing a token-bounded,
// priority-ordered subset for LLM consumption.
package optimizer

import (
	"time"
)

// MetaRelevanceScore is the metadata key carrying the derived relevance
// score. It is ephemeral: recomputed per pipeline invocation, never persisted.
const MetaRelevanceScore = "relevanceScore"

// Item is a projection of a graph entity used inside the pipeline. Items are
// created fresh per invocation and treated as immutable; metadata changes go
// through WithMetadata, which always produces a new copy. Sharing an item
// across intermediate slices is therefore safe.
type Item struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Type     string                 `json:"type"`
	FilePath string                 `json:"filePath,omitempty"`
	Code     string                 `json:"code,omitempty"`
	Content  string                 `json:"content,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// WithMetadata returns a copy of the item with the given entries merged into
// a fresh metadata map. The receiver is never mutated.
func (it Item) WithMetadata(entries map[string]interface{}) Item {
	meta := make(map[string]interface{}, len(it.Metadata)+len(entries))
	for k, v := range it.Metadata {
		meta[k] = v
	}
	for k, v := range entries {
		meta[k] = v
	}
	out := it
	out.Metadata = meta
	return out
}

// RelevanceScore reads the derived relevance score, 0 when unset.
func (it Item) RelevanceScore() float64 {
	return metaFloat(it.Metadata, MetaRelevanceScore)
}

// Relationship is the pipeline-local projection of a graph edge. Its
// relevance score is derived as the sum of its endpoint item scores.
type Relationship struct {
	ID       string                 `json:"id"`
	SourceID string                 `json:"sourceId"`
	TargetID string                 `json:"targetId"`
	Type     string                 `json:"type"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// WithMetadata returns a copy of the relationship with merged metadata.
func (r Relationship) WithMetadata(entries map[string]interface{}) Relationship {
	meta := make(map[string]interface{}, len(r.Metadata)+len(entries))
	for k, v := range r.Metadata {
		meta[k] = v
	}
	for k, v := range entries {
		meta[k] = v
	}
	out := r
	out.Metadata = meta
	return out
}

// RelevanceScore reads the derived relevance score, 0 when unset.
func (r Relationship) RelevanceScore() float64 {
	return metaFloat(r.Metadata, MetaRelevanceScore)
}

// Data is the payload flowing through the pipeline stages. Every surviving
// relationship's endpoints must both be present in Items after any reduction
// stage - relationship validity is a hard post-condition.
type Data struct {
	Items           []Item                 `json:"items"`
	Relationships   []Relationship         `json:"relationships"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	ProcessingSteps []string               `json:"processingSteps,omitempty"`
}

// WithStep returns a copy of the data with the step appended to the audit
// trail and the metadata entries merged.
func (d Data) WithStep(step string, entries map[string]interface{}) Data {
	meta := make(map[string]interface{}, len(d.Metadata)+len(entries))
	for k, v := range d.Metadata {
		meta[k] = v
	}
	for k, v := range entries {
		meta[k] = v
	}
	steps := make([]string, 0, len(d.ProcessingSteps)+1)
	steps = append(steps, d.ProcessingSteps...)
	steps = append(steps, step)

	out := d
	out.Metadata = meta
	out.ProcessingSteps = steps
	return out
}

// Query describes what the caller is assembling context for. When Query is
// empty the remaining fields are concatenated to derive the query text.
type Query struct {
	Query         string `json:"query,omitempty"`
	ComponentID   string `json:"componentId,omitempty"`
	ComponentName string `json:"componentName,omitempty"`
	ComponentType string `json:"componentType,omitempty"`
	Language      string `json:"language,omitempty"`
	FilePath      string `json:"filePath,omitempty"`
}

// OutputFormat selects how optimized context is rendered.
type OutputFormat string

const (
	FormatJSON     OutputFormat = "json"
	FormatMarkdown OutputFormat = "markdown"
	FormatText     OutputFormat = "text"
)

// Options controls a single pipeline invocation.
type Options struct {
	TargetTokens         int          `json:"targetTokens"`
	IncludeSourceCode    bool         `json:"includeSourceCode"`
	IncludeRelationships bool         `json:"includeRelationships"`
	OutputFormat         OutputFormat `json:"outputFormat,omitempty"`
}

// Result reports what the pipeline did. A non-empty Warnings slice means the
// output is best-effort (e.g. minimums kept despite exceeding the target).
type Result struct {
	Data                 Data          `json:"data"`
	OriginalTokens       int           `json:"originalTokens"`
	FinalTokens          int           `json:"finalTokens"`
	ItemsRemoved         int           `json:"itemsRemoved"`
	RelationshipsRemoved int           `json:"relationshipsRemoved"`
	ProcessingTime       time.Duration `json:"processingTime"`
	StrategiesApplied    []string      `json:"strategiesApplied"`
	Warnings             []string      `json:"warnings"`
}

// metaFloat reads a numeric metadata value tolerantly; JSON round-trips
// turn numbers into float64 but in-process writers may use int.
func metaFloat(meta map[string]interface{}, key string) float64 {
	if meta == nil {
		return 0
	}
	switch v := meta[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// filterValidRelationships enforces the relationship-validity invariant:
// both endpoints must be present in the surviving item set.
func filterValidRelationships(relationships []Relationship, items []Item) []Relationship {
	kept := make(map[string]bool, len(items))
	for _, it := range items {
		kept[it.ID] = true
	}
	out := make([]Relationship, 0, len(relationships))
	for _, r := range relationships {
		if kept[r.SourceID] && kept[r.TargetID] {
			out = append(out, r)
		}
	}
	return out
}
