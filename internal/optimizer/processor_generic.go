package optimizer

import (
	"encoding/json"
	"time"
)

// GenericProcessor is the wildcard fallback for item types no specific
// processor claims. Estimates use the flat chars/4 heuristic; priority comes
// from generic signals: connectivity and recency.
type GenericProcessor struct {
	cfg ProcessorConfig
}

// NewGenericProcessor creates the fallback processor.
func NewGenericProcessor(cfg ProcessorConfig) *GenericProcessor {
	return &GenericProcessor{cfg: cfg}
}

func (p *GenericProcessor) Name() string { return "generic" }

func (p *GenericProcessor) SupportedTypes() []string {
	return []string{Wildcard}
}

// EstimateTokens counts all textual fields, metadata included, at the
// generic ratio.
func (p *GenericProcessor) EstimateTokens(item Item) int {
	chars := len(item.ID) + len(item.Name) + len(item.Type) + len(item.FilePath)
	chars += len(item.Code) + len(item.Content)
	if len(item.Metadata) > 0 {
		if raw, err := json.Marshal(item.Metadata); err == nil {
			chars += len(raw)
		}
	}
	return estimateTokens(chars, p.cfg.CharsPerToken)
}

// CalculatePriority scores from relevance plus connectivity, with a mild
// recency boost when the item carries a parseable updatedAt timestamp.
func (p *GenericProcessor) CalculatePriority(item Item, data Data) float64 {
	priority := 1.0 + item.RelevanceScore()
	priority += float64(relationshipCount(item, data)) * 0.2

	if ts := metaString(item.Metadata, "updatedAt"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			if time.Since(t) < 7*24*time.Hour {
				priority *= 1.25
			}
		}
	}
	return priority
}

func (p *GenericProcessor) CanReduce(item Item) bool {
	return len(item.Content) > 100 || len(metaString(item.Metadata, "description")) > 100
}

// ReduceContent performs proportional truncation of content and the
// description metadata field.
func (p *GenericProcessor) ReduceContent(item Item, factor float64) Item {
	if !p.CanReduce(item) {
		return item
	}
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}

	out := item
	if len(item.Content) > 100 {
		keep := int(float64(len(item.Content)) * (1 - factor))
		if keep < 50 {
			keep = 50
		}
		out.Content = truncateString(item.Content, keep)
	}
	if desc := metaString(item.Metadata, "description"); len(desc) > 100 {
		keep := int(float64(len(desc)) * (1 - factor))
		if keep < 50 {
			keep = 50
		}
		out = out.WithMetadata(map[string]interface{}{"description": truncateString(desc, keep)})
	}
	return out
}
