package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled patterns; compiling per parse is wasteful on hot paths.
var (
	codeFenceRegex     = regexp.MustCompile("(?s)```(?:json|javascript|js)?\\s*\\n?([\\s\\S]*?)\\n?```")
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	objectRegex        = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRegex         = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// ParseResult is the outcome of one resilient parse attempt
type ParseResult[T any] struct {
	Success bool
	Data    T
	Error   string
}

// Parse extracts a JSON value of type T from raw model output.
//
// Models wrap JSON in markdown fences, prepend prose, and leave trailing
// commas, so a direct unmarshal is tried first and then progressively
// more forgiving strategies:
//
//  1. direct parse
//  2. strip code fences
//  3. remove trailing commas
//  4. extract the outermost object or array from mixed content
//
// context names the payload in error messages.
func Parse[T any](text string, context string) ParseResult[T] {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ParseResult[T]{Error: fmt.Sprintf("%s: empty response", context)}
	}

	var firstErr error
	for _, candidate := range parseCandidates(trimmed) {
		var data T
		if err := json.Unmarshal([]byte(candidate), &data); err == nil {
			return ParseResult[T]{Success: true, Data: data}
		} else if firstErr == nil {
			firstErr = err
		}
	}

	return ParseResult[T]{
		Error: fmt.Sprintf("%s: %v (response preview: %s)", context, firstErr, Truncate(trimmed, 200)),
	}
}

// parseCandidates yields progressively cleaned-up versions of the text
func parseCandidates(text string) []string {
	candidates := []string{text}

	if m := codeFenceRegex.FindStringSubmatch(text); len(m) == 2 {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}

	cleaned := trailingCommaRegex.ReplaceAllString(text, "$1")
	if cleaned != text {
		candidates = append(candidates, cleaned)
	}

	// Extraction from mixed content; prefer whichever structure starts first
	// so prose mentioning a bracket later does not shadow the real payload.
	obj := objectRegex.FindString(cleaned)
	arr := arrayRegex.FindString(cleaned)
	switch {
	case obj != "" && (arr == "" || strings.Index(cleaned, obj) <= strings.Index(cleaned, arr)):
		candidates = append(candidates, obj, trailingCommaRegex.ReplaceAllString(obj, "$1"))
		if arr != "" {
			candidates = append(candidates, arr)
		}
	case arr != "":
		candidates = append(candidates, arr, trailingCommaRegex.ReplaceAllString(arr, "$1"))
		if obj != "" {
			candidates = append(candidates, obj)
		}
	}

	return candidates
}

// Truncate shortens s for log and error messages
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
