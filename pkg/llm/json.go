package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// thinkTagPattern matches <think>...</think> tags that some models emit at
// the start of a response.
var thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)

// fencePattern matches a markdown code fence wrapping the payload.
var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// controlCharPattern matches unescaped control characters that break
// json.Valid when models copy them into string values.
var controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// trailingCommaPattern matches a comma directly before a closing brace or
// bracket, a common model output defect.
var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

// ExtractRecordArray pulls the first JSON array out of a model response that
// may be wrapped in think tags, markdown fences, or lead-in prose. Wrapping
// artifacts are stripped exactly once; if no valid array remains the
// response is malformed and the caller decides whether to re-request.
func ExtractRecordArray(response string) (string, error) {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	if m := fencePattern.FindStringSubmatch(cleaned); len(m) >= 2 && strings.ContainsRune(m[1], '[') {
		cleaned = m[1]
	}

	start := strings.IndexByte(cleaned, '[')
	if start == -1 {
		return "", fmt.Errorf("no JSON array found in response")
	}
	tail := cleaned[start:]

	if jsonStr, ok := extractBalancedArray(tail); ok {
		if json.Valid([]byte(jsonStr)) {
			return jsonStr, nil
		}
		if repaired, ok := scrub(jsonStr); ok {
			return repaired, nil
		}
	}

	// The array never closes: the response was likely cut off at the token
	// limit. Keep everything up to the last complete object and close the
	// array there.
	if lastObj := strings.LastIndexByte(tail, '}'); lastObj > 0 {
		if repaired, ok := scrub(tail[:lastObj+1] + "]"); ok {
			return repaired, nil
		}
	}

	return "", fmt.Errorf("no valid JSON array found in response")
}

// scrub removes control characters and trailing commas, returning the
// result only if it is valid JSON afterwards.
func scrub(s string) (string, bool) {
	s = controlCharPattern.ReplaceAllString(s, " ")
	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	if json.Valid([]byte(s)) {
		return s, true
	}
	return "", false
}

// extractBalancedArray finds the first balanced JSON array in s, counting
// bracket depth while honoring string literals and escapes.
func extractBalancedArray(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		if c == '\\' && inString {
			escaped = true
			continue
		}

		if c == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		if c == '[' {
			depth++
		} else if c == ']' {
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
