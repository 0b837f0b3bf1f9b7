package optimizer

import (
	"fmt"
	"strings"
)

// ProcessorConfig holds the shared tuning knobs for content processors.
// Ratios are chars-per-token: code tokenizes denser than prose, prose denser
// than generic mixed content.
type ProcessorConfig struct {
	CharsPerToken     float64 `yaml:"chars_per_token"`      // Generic fallback ratio
	CodeCharsPerToken float64 `yaml:"code_chars_per_token"` // Ratio applied to code text
	DocCharsPerToken  float64 `yaml:"doc_chars_per_token"`  // Ratio applied to prose

	// Code reduction keeps this many leading/trailing lines around the
	// truncation marker.
	CodeHeadLines int `yaml:"code_head_lines"`
	CodeTailLines int `yaml:"code_tail_lines"`
}

// DefaultProcessorConfig returns the calibrated defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		CharsPerToken:     4.0,
		CodeCharsPerToken: 3.0,
		DocCharsPerToken:  3.5,
		CodeHeadLines:     5,
		CodeTailLines:     2,
	}
}

// Validate reports a configuration problem as a message string, empty when
// the config is usable. Invalid configs are a caller decision, not a panic.
func (c ProcessorConfig) Validate() string {
	check := func(name string, v float64) string {
		if v < 1 || v > 10 {
			return fmt.Sprintf("%s must be within [1,10], got %g", name, v)
		}
		return ""
	}
	if msg := check("chars_per_token", c.CharsPerToken); msg != "" {
		return msg
	}
	if msg := check("code_chars_per_token", c.CodeCharsPerToken); msg != "" {
		return msg
	}
	if msg := check("doc_chars_per_token", c.DocCharsPerToken); msg != "" {
		return msg
	}
	if c.CodeHeadLines < 1 || c.CodeTailLines < 0 {
		return fmt.Sprintf("code head/tail lines must be >=1/>=0, got %d/%d", c.CodeHeadLines, c.CodeTailLines)
	}
	return ""
}

// TruncationMarker replaces removed interior lines during code reduction.
const TruncationMarker = "// ... truncated ..."

// Ellipsis terminates shortened prose.
const Ellipsis = "..."

// estimateTokens converts a character count to tokens under a ratio,
// rounding up so short non-empty strings never estimate to zero.
func estimateTokens(chars int, charsPerToken float64) int {
	if chars == 0 {
		return 0
	}
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	tokens := int(float64(chars) / charsPerToken)
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

// metaString reads a string metadata value, "" when unset or non-string.
func metaString(meta map[string]interface{}, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return s
}

// relationshipCount counts relationships touching the item within the data set.
func relationshipCount(item Item, data Data) int {
	count := 0
	for _, r := range data.Relationships {
		if r.SourceID == item.ID || r.TargetID == item.ID {
			count++
		}
	}
	return count
}

// truncateString shortens s to at most limit characters plus the ellipsis.
// Strings at or under the limit pass through unchanged.
func truncateString(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return strings.TrimRight(s[:limit], " \t\n") + Ellipsis
}
