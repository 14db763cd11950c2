package config

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ParseShipmentList turns a raw shipment id list into ids.
//
// A JSON array is tried first; its elements are stringified and falsy ones
// (null, "", 0, false) are dropped. Anything else is split on commas.
// Blank ids are removed in both forms.
func ParseShipmentList(raw string) []string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var elems []json.RawMessage
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		if err := dec.Decode(&elems); err == nil {
			return shipmentsFromJSON(elems)
		}
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func shipmentsFromJSON(elems []json.RawMessage) []string {
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		if id, ok := shipmentID(e); ok {
			out = append(out, id)
		}
	}
	return out
}

func shipmentID(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case 'n', 'f':
		// null, false
		return "", false
	case 't':
		return "true", true
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	case '[', '{':
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return "", false
		}
		switch x := v.(type) {
		case []any:
			if len(x) == 0 {
				return "", false
			}
		case map[string]any:
			if len(x) == 0 {
				return "", false
			}
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", false
		}
		return buf.String(), true
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false
		}
		if f, err := n.Float64(); err == nil && f == 0 {
			return "", false
		}
		return n.String(), true
	}
}
