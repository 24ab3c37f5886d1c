package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse means the model returned no answer text at all. That is a
// transport/service problem, not a formatting problem, so it is never retried.
var ErrEmptyResponse = errors.New("inference: empty response")

// TruncatedError means the response text does not end with the closing brace
// of a complete JSON object. Detected before any parse attempt.
type TruncatedError struct {
	Text string
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("inference: truncated response (%d bytes)", len(e.Text))
}

// ParseError means the response ends like a JSON object but neither the full
// text nor its first balanced object substring parses.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("inference: malformed response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// retryable reports whether a validation failure is eligible for the single
// stricter retry.
func retryable(err error) bool {
	var te *TruncatedError
	var pe *ParseError
	return errors.As(err, &te) || errors.As(err, &pe)
}

// decodeResponse parses the model's answer text into out on the strict
// protocol shared by every call site: strip code fences, check the cheapest
// possible truncation signal first, then direct parse, then the first
// balanced object substring.
func decodeResponse(text string, out any) error {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return ErrEmptyResponse
	}
	cleaned = stripFences(cleaned)

	// A complete JSON object ends in '}'. Anything else is a cut-off payload
	// and is rejected without parsing.
	if !strings.HasSuffix(cleaned, "}") {
		return &TruncatedError{Text: text}
	}

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	obj, ok := firstBalancedObject(cleaned)
	if ok {
		if err := json.Unmarshal([]byte(obj), out); err == nil {
			return nil
		} else {
			return &ParseError{Text: text, Err: err}
		}
	}
	return &ParseError{Text: text, Err: errors.New("no JSON object found")}
}

func stripFences(s string) string {
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// firstBalancedObject returns the first brace-balanced object substring,
// respecting string literals and escapes.
func firstBalancedObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}
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
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
