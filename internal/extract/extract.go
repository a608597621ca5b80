// Package extract recovers structured JSON from language model output.
// Models reliably violate "respond only with JSON" instructions by
// wrapping the object in markdown fences or prose, so extraction is a
// cascade of salvage strategies rather than a single parse.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Error means no JSON object could be recovered from the text. Raw
// carries the original model output for diagnostics.
type Error struct {
	Raw string
}

func (e *Error) Error() string {
	return fmt.Sprintf("no JSON object found in response: %s", truncate(e.Raw, 200))
}

// Object recovers a JSON object from raw model output. Strategies are
// tried in order and the first parse that yields an object wins:
//
//  1. strip a surrounding markdown code fence (optionally tagged json)
//  2. slice from the first "{" to the last "}"
//  3. scan for the first balanced outermost "{...}" span
//
// Arrays, primitives and null are rejected even when they are valid
// JSON. Keys beyond the expected ones are kept as-is; validating key
// presence is the caller's concern.
func Object(raw string) (map[string]any, error) {
	for _, candidate := range candidates(raw) {
		if obj, ok := parseObject(candidate); ok {
			return obj, nil
		}
	}
	return nil, &Error{Raw: raw}
}

func candidates(raw string) []string {
	trimmed := strings.TrimSpace(raw)

	out := []string{stripFences(trimmed)}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start != -1 && end > start {
		out = append(out, trimmed[start:end+1])
	}
	if span, ok := balancedSpan(trimmed); ok {
		out = append(out, span)
	}
	return out
}

// stripFences removes a surrounding markdown code block marker.
func stripFences(s string) string {
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// balancedSpan returns the span from the first "{" to the brace that
// closes it. Nesting is tracked but string literals are not; model
// output does not put unmatched braces inside the object in practice.
func balancedSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
