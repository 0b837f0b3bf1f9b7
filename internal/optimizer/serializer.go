package optimizer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Serialize renders optimized context in the requested output format.
// Unknown formats default to JSON.
func Serialize(data Data, format OutputFormat) (string, error) {
	switch format {
	case FormatMarkdown:
		return serializeMarkdown(data), nil
	case FormatText:
		return serializeText(data), nil
	case FormatJSON, "":
		fallthrough
	default:
		raw, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("serializing context to JSON: %w", err)
		}
		return string(raw), nil
	}
}

func serializeMarkdown(data Data) string {
	var b strings.Builder
	b.WriteString("# Context\n\n")
	for _, item := range data.Items {
		fmt.Fprintf(&b, "## %s (%s)\n\n", item.Name, item.Type)
		if item.FilePath != "" {
			fmt.Fprintf(&b, "Path: `%s`\n\n", item.FilePath)
		}
		if doc := metaString(item.Metadata, "documentation"); doc != "" {
			b.WriteString(doc)
			b.WriteString("\n\n")
		}
		if item.Content != "" {
			b.WriteString(item.Content)
			b.WriteString("\n\n")
		}
		if item.Code != "" {
			fmt.Fprintf(&b, "```\n%s\n```\n\n", item.Code)
		}
	}
	if len(data.Relationships) > 0 {
		b.WriteString("## Relationships\n\n")
		for _, rel := range data.Relationships {
			fmt.Fprintf(&b, "- %s -[%s]-> %s\n", rel.SourceID, rel.Type, rel.TargetID)
		}
	}
	return b.String()
}

func serializeText(data Data) string {
	var b strings.Builder
	for _, item := range data.Items {
		fmt.Fprintf(&b, "%s (%s)", item.Name, item.Type)
		if item.FilePath != "" {
			fmt.Fprintf(&b, " [%s]", item.FilePath)
		}
		b.WriteByte('\n')
		if item.Content != "" {
			b.WriteString(item.Content)
			b.WriteByte('\n')
		}
		if item.Code != "" {
			b.WriteString(item.Code)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	for _, rel := range data.Relationships {
		fmt.Fprintf(&b, "%s -[%s]-> %s\n", rel.SourceID, rel.Type, rel.TargetID)
	}
	return b.String()
}
