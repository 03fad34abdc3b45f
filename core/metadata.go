package core

import (
	"bytes"
	"encoding/json"
)

// Metadata is the string key/value bag attached to a record. Producers are
// allowed to write any JSON value: strings decode as-is, null drops the
// key, and anything else (numbers, booleans, arrays, objects) keeps its
// compact JSON text, so {"page_count": 3} reads back as "3".
type Metadata map[string]string

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}

	out := make(Metadata, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		if bytes.Equal(v, []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return err
		}
		out[k] = buf.String()
	}
	*m = out
	return nil
}
