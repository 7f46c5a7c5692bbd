package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
)

var (
	// ErrNoJSON means the response contained no JSON object at all.
	ErrNoJSON = errors.New("no JSON object in model response")
	// ErrMalformedJSON means brace-delimited text was found but none of it parsed.
	ErrMalformedJSON = errors.New("malformed JSON object in model response")
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\r?\\n?(.*?)```")

// ExtractJSON returns the first JSON object found in a free-text model
// response. Fenced code blocks are tried first, then every balanced {...}
// span in order of appearance.
func ExtractJSON(text string) (json.RawMessage, error) {
	sawCandidate := false

	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		body := bytes.TrimSpace([]byte(m[1]))
		if len(body) == 0 || body[0] != '{' {
			continue
		}
		sawCandidate = true
		if obj, ok := firstObject(body); ok {
			return obj, nil
		}
	}

	if obj, ok := firstObject([]byte(text)); ok {
		return obj, nil
	}
	if sawCandidate || bytes.IndexByte([]byte(text), '{') >= 0 {
		return nil, ErrMalformedJSON
	}
	return nil, ErrNoJSON
}

// firstObject scans s for balanced brace spans and returns the first that is
// a valid JSON object.
func firstObject(s []byte) (json.RawMessage, bool) {
	for start := bytes.IndexByte(s, '{'); start >= 0; {
		if end := matchBrace(s, start); end > start {
			span := s[start : end+1]
			if json.Valid(span) {
				return json.RawMessage(span), true
			}
		}
		next := bytes.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// matchBrace returns the index of the brace closing the one at open, skipping
// braces inside JSON strings, or -1 when the span never closes.
func matchBrace(s []byte, open int) int {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
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
