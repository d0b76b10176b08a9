// Package extract recovers structured data from semi-structured
// language-model output: a best-effort JSON array parser and a URL
// scanner. Model output routinely arrives wrapped in markdown fences,
// prefixed with prose, or both, so strict parsing is only the first
// attempt.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// arraySpan grabs the widest [...] span in the text. Greedy so nested
// arrays inside the span stay intact.
var arraySpan = regexp.MustCompile(`(?s)\[.*\]`)

// StripFences removes a markdown code fence wrapping the payload, with
// or without a language tag.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Array parses a JSON array of T out of raw model output.
//
// Attempts, in order: strict parse after fence stripping, then strict
// parse of the first bracketed span. If both fail the raw text is
// logged and an empty collection is returned; a garbled auxiliary
// stream never fails the run.
func Array[T any](logger *zap.Logger, raw string) []T {
	cleaned := StripFences(raw)

	var out []T
	if err := json.Unmarshal([]byte(cleaned), &out); err == nil {
		return out
	}

	if span := arraySpan.FindString(cleaned); span != "" {
		out = nil
		if err := json.Unmarshal([]byte(span), &out); err == nil {
			return out
		}
	}

	logger.Warn("no JSON array recoverable from model output", zap.String("raw", raw))
	return nil
}

// Object strictly parses a JSON object after fence stripping. Unlike
// Array there is no span fallback and failure is an error: a script
// the model could not serialize is not worth salvaging.
func Object(raw string, v any) error {
	return json.Unmarshal([]byte(StripFences(raw)), v)
}
