package utils

import (
	"encoding/json"
	"strings"

	"github.com/casetutor/casetutor/pkg/errors"
)

// ParseJSONResponse attempts to parse a provider response as a JSON object.
// It is strict: the whole string must be valid JSON. Use ExtractJSONObject
// as the documented fallback for objects embedded in prose.
func ParseJSONResponse(response string) (map[string]any, error) {
	var result map[string]any
	if err := json.Unmarshal([]byte(response), &result); err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Provider, "failed to parse JSON response"),
			errors.Fields{
				"data_preview": truncateString(response, 100),
				"data_length":  len(response),
			})
	}
	return result, nil
}

// ExtractJSONObject scans s for the first balanced top-level JSON object
// and parses it strictly. It does not attempt to repair malformed JSON:
// either a balanced object is present and valid, or the extraction fails.
func ExtractJSONObject(s string) (map[string]any, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, errors.New(errors.Provider, "no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// string contents are opaque
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return ParseJSONResponse(s[start : i+1])
			}
		}
	}
	return nil, errors.WithFields(
		errors.New(errors.Provider, "unbalanced JSON object in response"),
		errors.Fields{"data_preview": truncateString(s, 100)},
	)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
