// Package humanize provides the wire-level building blocks for talking
// to the humanizer upstream: candidate request encodings, response-shape
// probing, word accounting, and the local degraded transform.
// All functions are pure.
package humanize

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Format names for the candidate request encodings. The upstream's
// accepted schema has changed silently more than once, so requests are
// encoded in each candidate format in turn until one returns 200.
const (
	FormatJSONInputText = "json_input_text" // {"input_text": ...}
	FormatJSONText      = "json_text"       // {"text": ...}
	FormatForm          = "form"            // application/x-www-form-urlencoded, text=...
	FormatPlain         = "plain"           // raw text/plain body
	FormatQuery         = "query"           // POST with ?text=... and empty body
)

// DefaultFormats is the priority order observed to work against the
// hosted upstream: the input_text JSON schema is the current one, the
// rest are legacy shapes it has accepted at various times.
func DefaultFormats() []string {
	return []string{FormatJSONInputText, FormatJSONText, FormatForm, FormatPlain, FormatQuery}
}

// Request is an encoded upstream request (value type).
type Request struct {
	Body        []byte
	ContentType string
	Query       url.Values // Non-nil only for the query format
}

// EncodeRequest encodes text in the named candidate format.
// This is a PURE function.
func EncodeRequest(format, text string) (Request, error) {
	switch format {
	case FormatJSONInputText:
		b, err := json.Marshal(map[string]string{"input_text": text})
		return Request{Body: b, ContentType: "application/json"}, err
	case FormatJSONText:
		b, err := json.Marshal(map[string]string{"text": text})
		return Request{Body: b, ContentType: "application/json"}, err
	case FormatForm:
		v := url.Values{"text": {text}}
		return Request{Body: []byte(v.Encode()), ContentType: "application/x-www-form-urlencoded"}, nil
	case FormatPlain:
		return Request{Body: []byte(text), ContentType: "text/plain"}, nil
	case FormatQuery:
		return Request{Query: url.Values{"text": {text}}}, nil
	default:
		return Request{}, fmt.Errorf("unknown request format %q", format)
	}
}

// DefaultResultKeys is the priority order of JSON keys the upstream has
// been seen to return its output under.
func DefaultResultKeys() []string {
	return []string{"humanized_text", "output_text", "result", "text", "output"}
}

// ProbeResult extracts the humanized text from a 200 response body of
// unknown shape. JSON bodies are probed key by key; the first present
// non-empty string wins. A non-JSON body is taken verbatim when it looks
// like plain prose. Returns false when nothing usable is found.
// This is a PURE function.
func ProbeResult(body []byte, keys []string) (string, bool) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", false
	}

	if gjson.Valid(trimmed) {
		parsed := gjson.Parse(trimmed)
		if parsed.Type == gjson.String {
			// A bare JSON string is the result itself.
			if s := strings.TrimSpace(parsed.String()); s != "" {
				return s, true
			}
			return "", false
		}
		for _, key := range keys {
			if v := parsed.Get(key); v.Exists() && v.Type == gjson.String {
				if s := strings.TrimSpace(v.String()); s != "" {
					return s, true
				}
			}
		}
		// Valid JSON with no recognizable result key is an unexpected
		// shape, not usable text.
		if parsed.IsObject() || parsed.IsArray() {
			return "", false
		}
	}

	// Plain text body: use it verbatim.
	return trimmed, true
}

// CountWords counts whitespace-separated words.
// This is a PURE function.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Truncate cuts text down to limit words. A limit of zero or less means
// no cap. Reports whether anything was cut.
// This is a PURE function.
func Truncate(text string, limit int) (string, bool) {
	if limit <= 0 {
		return text, false
	}
	words := strings.Fields(text)
	if len(words) <= limit {
		return text, false
	}
	return strings.Join(words[:limit], " "), true
}
