package planning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "insight-agents/internal/common/errors"
	"insight-agents/internal/common/validation"
)

// ExtractObject returns the first balanced, well-formed JSON object embedded in a
// model reply. Prose and markdown fences around the object are ignored.
func ExtractObject(reply string) (string, error) {
	for start := strings.IndexByte(reply, '{'); start >= 0; {
		if end := matchBrace(reply, start); end > start {
			candidate := reply[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
		next := strings.IndexByte(reply[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", fmt.Errorf("no JSON object found in model response")
}

// matchBrace returns the index of the '}' closing the '{' at start, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Decode extracts the plan object from reply, validates it against schema and
// strictly decodes it into out. Every failure is a PLAN_INFERENCE_FAILED error.
func Decode(reply string, schema *validation.Schema, out interface{}) error {
	raw, err := ExtractObject(reply)
	if err != nil {
		return apperrors.NewPlanInferenceError("model did not return a plan", err)
	}

	if schema != nil {
		res, err := schema.ValidateJSON([]byte(raw))
		if err != nil {
			return apperrors.NewPlanInferenceError("plan is not valid JSON", err)
		}
		if !res.Valid {
			return apperrors.NewPlanInferenceError("plan does not match the expected shape", res)
		}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return apperrors.NewPlanInferenceError("plan could not be decoded", err)
	}
	return nil
}
