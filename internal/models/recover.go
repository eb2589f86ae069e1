package models

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	blankLineRe  = regexp.MustCompile(`\s*\n\s*`)
	fenceOpenRe  = regexp.MustCompile("^```[a-zA-Z]*\\s*\n?")
	fenceCloseRe = regexp.MustCompile("\n?```\\s*$")
	fenceJSONRe  = regexp.MustCompile("^```json\\s*|\\s*```")
)

// CleanFences strips a surrounding markdown code fence, with or without a
// language tag, and returns the trimmed inner text.
func CleanFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpenRe.ReplaceAllString(s, "")
	s = fenceCloseRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Normalize turns near-JSON LLM output into a map. It collapses blank lines,
// strips code fences, rewrites single quotes to double quotes and repairs
// missing closing braces and brackets. On any failure it returns an empty
// map, never an error, so callers can fall back to the raw text.
//
// Valid JSON parses as-is; the quote swap and structure repair are recovery
// steps applied only after a parse failure, so string values containing
// apostrophes survive and re-normalizing normalized output is a no-op.
func Normalize(raw string) map[string]any {
	cleaned := blankLineRe.ReplaceAllString(strings.TrimSpace(raw), "\n")
	cleaned = fenceJSONRe.ReplaceAllString(cleaned, "")

	if m := parseObject(cleaned); m != nil {
		return m
	}

	cleaned = strings.ReplaceAll(cleaned, "'", `"`)
	if m := parseObject(cleaned); m != nil {
		return m
	}

	// Close any unterminated structures and retry once. Arrays close before
	// braces since lists nest inside the top-level object.
	fixed := cleaned
	if n := strings.Count(cleaned, "[") - strings.Count(cleaned, "]"); n > 0 {
		fixed += strings.Repeat("]", n)
	}
	if n := strings.Count(cleaned, "{") - strings.Count(cleaned, "}"); n > 0 {
		fixed += strings.Repeat("}", n)
	}
	if m := parseObject(fixed); m != nil {
		return m
	}

	return map[string]any{}
}

func parseObject(s string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
