package ai

import (
	_ "embed"
	"strings"
)

//go:embed prompts/caption.txt
var captionPrompt string

// buildCaptionPrompt returns the caption system prompt, extended with the
// project's existing tag vocabulary when available.
func buildCaptionPrompt(knownTags []string) string {
	if len(knownTags) == 0 {
		return captionPrompt
	}
	var b strings.Builder
	b.WriteString(captionPrompt)
	b.WriteString("\nKnown vocabulary: ")
	b.WriteString(strings.Join(knownTags, ", "))
	b.WriteString("\n")
	return b.String()
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(content string) string {
	// Try to find JSON object boundaries
	start := strings.Index(content, "{")
	if start == -1 {
		return content
	}

	// Find matching closing brace
	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}

	// If no matching brace found, return from start
	return content[start:]
}
