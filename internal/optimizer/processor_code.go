package optimizer

import (
	"strings"
)

// CodeProcessor handles items carrying source code. Token estimates weight
// the raw character count of the code field; priority favors exported/public
// signatures; reduction preserves the signature line and replaces interior
// body lines with an explicit truncation marker.
type CodeProcessor struct {
	cfg ProcessorConfig
}

// NewCodeProcessor creates a code processor with the given config.
func NewCodeProcessor(cfg ProcessorConfig) *CodeProcessor {
	return &CodeProcessor{cfg: cfg}
}

func (p *CodeProcessor) Name() string { return "code" }

// SupportedTypes covers the entity kinds produced by source parsers.
func (p *CodeProcessor) SupportedTypes() []string {
	return []string{"function", "method", "class", "interface", "struct", "component", "module", "file"}
}

// EstimateTokens weights code characters at the denser code ratio and the
// remaining text fields at the generic ratio.
func (p *CodeProcessor) EstimateTokens(item Item) int {
	tokens := estimateTokens(len(item.Code), p.cfg.CodeCharsPerToken)
	tokens += estimateTokens(len(item.Name)+len(item.Content)+len(item.FilePath), p.cfg.CharsPerToken)
	tokens += estimateTokens(len(metaString(item.Metadata, "documentation")), p.cfg.DocCharsPerToken)
	return tokens
}

// CalculatePriority combines the relevance score with structural signals:
// exported/public signatures and connectivity within the data set.
func (p *CodeProcessor) CalculatePriority(item Item, data Data) float64 {
	priority := 1.0 + item.RelevanceScore()

	if hasExportedSignature(item) {
		priority *= 1.5
	}
	priority += float64(relationshipCount(item, data)) * 0.25

	return priority
}

// CanReduce reports whether the code body is long enough to truncate.
func (p *CodeProcessor) CanReduce(item Item) bool {
	return len(strings.Split(item.Code, "\n")) > p.cfg.CodeHeadLines+p.cfg.CodeTailLines+1
}

// ReduceContent truncates the code body while preserving the signature line.
// A fixed number of leading and trailing lines are kept and the removed
// interior is replaced with the truncation marker. The factor scales how many
// additional leading lines survive.
func (p *CodeProcessor) ReduceContent(item Item, factor float64) Item {
	if !p.CanReduce(item) {
		return item
	}
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}

	lines := strings.Split(item.Code, "\n")

	// Keep the configured head plus a factor-scaled share of the body;
	// a higher reduction factor removes more.
	keepHead := p.cfg.CodeHeadLines + int(float64(len(lines)-p.cfg.CodeHeadLines-p.cfg.CodeTailLines)*(1-factor)*0.5)
	if keepHead < p.cfg.CodeHeadLines {
		keepHead = p.cfg.CodeHeadLines
	}
	keepTail := p.cfg.CodeTailLines

	if keepHead+keepTail >= len(lines) {
		return item
	}

	reduced := make([]string, 0, keepHead+keepTail+1)
	reduced = append(reduced, lines[:keepHead]...)
	reduced = append(reduced, TruncationMarker)
	if keepTail > 0 {
		reduced = append(reduced, lines[len(lines)-keepTail:]...)
	}

	out := item.WithMetadata(map[string]interface{}{"codeTruncated": true})
	out.Code = strings.Join(reduced, "\n")
	return out
}

// exportedPrefixes mark public declarations across the supported languages.
var exportedPrefixes = []string{
	"public ", "export ", "export default ", "def ", "pub ",
}

// hasExportedSignature reports whether the item's code or name indicates a
// public/exported declaration.
func hasExportedSignature(item Item) bool {
	firstLine := item.Code
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	trimmed := strings.TrimSpace(firstLine)

	for _, prefix := range exportedPrefixes {
		if strings.HasPrefix(trimmed, prefix) || strings.Contains(trimmed, " "+prefix) {
			return true
		}
	}

	// Go convention: exported identifiers start with an upper-case letter.
	if strings.HasPrefix(trimmed, "func ") || strings.HasPrefix(trimmed, "type ") {
		rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(trimmed, "func "), "type "))
		rest = strings.TrimPrefix(rest, "(") // method receiver
		if rest != "" && rest[0] >= 'A' && rest[0] <= 'Z' {
			return true
		}
	}

	if item.Name != "" && item.Name[0] >= 'A' && item.Name[0] <= 'Z' {
		return true
	}
	return false
}
