package intake

import (
	"bytes"
	"encoding/json"
	"iter"
	"strings"
)

// RawRecord is one candidate field mapping produced by the extraction service.
// When the payload could not be decoded into a mapping, Fields is nil and Payload
// keeps the offending text for diagnostics.
type RawRecord struct {
	Fields  map[string]any
	Payload string
}

// Unparseable reports whether the record could not be decoded into fields.
func (r RawRecord) Unparseable() bool {
	return r.Fields == nil
}

// ParseExtraction decodes the extraction service output into raw records. The output
// may be a single object or an array of objects, optionally wrapped in a fenced code
// block. Anything undecodable yields exactly one unparseable record.
func ParseExtraction(content string) iter.Seq[RawRecord] {
	body := StripFence(content)

	return func(yield func(RawRecord) bool) {
		var decoded any
		dec := json.NewDecoder(strings.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err != nil || dec.More() {
			yield(RawRecord{Payload: content})
			return
		}

		switch v := decoded.(type) {
		case map[string]any:
			yield(RawRecord{Fields: v})
		case []any:
			for _, item := range v {
				rec := RawRecord{}
				if fields, ok := item.(map[string]any); ok {
					rec.Fields = fields
				} else {
					rec.Payload = compact(item)
				}
				if !yield(rec) {
					return
				}
			}
		default:
			yield(RawRecord{Payload: content})
		}
	}
}

// StripFence removes a surrounding ```json ... ``` (or bare ```) block marker.
func StripFence(content string) string {
	text := strings.TrimSpace(content)
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
	} else {
		return text
	}
	if end := strings.Index(text, "```"); end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}

func compact(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}
