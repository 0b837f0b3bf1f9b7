package optimizer

import (
	"strings"
)

// DocumentProcessor handles prose-bearing items. Prose tokenizes denser than
// code per character, so estimates use the document ratio; reduction keeps
// headings and the first paragraph of each section intact.
type DocumentProcessor struct {
	cfg ProcessorConfig
}

// NewDocumentProcessor creates a document processor with the given config.
func NewDocumentProcessor(cfg ProcessorConfig) *DocumentProcessor {
	return &DocumentProcessor{cfg: cfg}
}

func (p *DocumentProcessor) Name() string { return "document" }

func (p *DocumentProcessor) SupportedTypes() []string {
	return []string{"document", "documentation", "readme", "markdown", "comment", "text"}
}

// EstimateTokens applies the prose ratio to all text fields.
func (p *DocumentProcessor) EstimateTokens(item Item) int {
	chars := len(item.Content) + len(item.Name) + len(item.FilePath)
	chars += len(metaString(item.Metadata, "description"))
	chars += len(metaString(item.Metadata, "documentation"))
	tokens := estimateTokens(chars, p.cfg.DocCharsPerToken)
	tokens += estimateTokens(len(item.Code), p.cfg.CodeCharsPerToken)
	return tokens
}

// CalculatePriority boosts headings, introductions, and README-like names on
// top of the relevance score.
func (p *DocumentProcessor) CalculatePriority(item Item, data Data) float64 {
	priority := 1.0 + item.RelevanceScore()

	lowerName := strings.ToLower(item.Name)
	switch {
	case strings.Contains(lowerName, "readme"):
		priority *= 2.0
	case strings.Contains(lowerName, "introduction") || strings.Contains(lowerName, "overview"):
		priority *= 1.5
	}
	if strings.HasPrefix(strings.TrimSpace(item.Content), "#") {
		priority *= 1.2
	}
	priority += float64(relationshipCount(item, data)) * 0.1

	return priority
}

func (p *DocumentProcessor) CanReduce(item Item) bool {
	return len(item.Content) > 200
}

// ReduceContent shortens body paragraphs while preserving every heading line
// and the first paragraph after each heading. Headings are never truncated
// mid-line.
func (p *DocumentProcessor) ReduceContent(item Item, factor float64) Item {
	if !p.CanReduce(item) {
		return item
	}
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}

	paragraphs := strings.Split(item.Content, "\n\n")
	reduced := make([]string, 0, len(paragraphs))
	firstAfterHeading := true

	for _, para := range paragraphs {
		trimmed := strings.TrimSpace(para)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			reduced = append(reduced, para)
			firstAfterHeading = true
			continue
		}
		if firstAfterHeading {
			reduced = append(reduced, para)
			firstAfterHeading = false
			continue
		}
		// Body paragraph: shorten proportionally to the reduction factor.
		keep := int(float64(len(para)) * (1 - factor))
		if keep < 40 {
			keep = 40
		}
		reduced = append(reduced, truncateString(para, keep))
	}

	out := item.WithMetadata(map[string]interface{}{"contentTruncated": true})
	out.Content = strings.Join(reduced, "\n\n")
	return out
}
