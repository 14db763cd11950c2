package tracking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BranchTransferCategory is the timeline category whose value is a group of
// sub-nodes instead of a single node.
const BranchTransferCategory = "branch_to_branch"

// ErrNotObject is returned when a JSON value expected to be an object is something else.
var ErrNotObject = errors.New("tracking: value is not a JSON object")

// RawNode is a provider timeline record kept as an untyped bag so that
// unknown fields (proof-of-delivery lists, comments, ...) survive for later use.
type RawNode map[string]json.RawMessage

// TimestampKind tags the state of a node's eventDt field.
type TimestampKind int

const (
	TimestampAbsent TimestampKind = iota
	TimestampPresent
	TimestampInvalid
)

// Timestamp reads eventDt as milliseconds since epoch.
//
// Accepted forms: JSON integer, JSON float (truncated toward zero), or a string
// holding a base-10 integer. Anything else (null, bool, garbage) is TimestampInvalid.
func (n RawNode) Timestamp() (int64, TimestampKind) {
	raw, ok := n["eventDt"]
	if !ok {
		return 0, TimestampAbsent
	}
	ts, err := coerceInt64(raw)
	if err != nil {
		return 0, TimestampInvalid
	}
	return ts, TimestampPresent
}

// String returns a string field. Missing, null and non-string values report ok=false.
func (n RawNode) String(key string) (string, bool) {
	raw, ok := n[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// FirstURL returns the "url" of the first element of an attachment list
// (for example epodList or esignList). Empty when the list is missing or malformed.
func (n RawNode) FirstURL(listKey string) string {
	raw, ok := n[listKey]
	if !ok {
		return ""
	}
	var items []RawNode
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 || items[0] == nil {
		return ""
	}
	u, _ := items[0].String("url")
	return u
}

// HasList reports whether listKey holds a non-empty JSON array.
func (n RawNode) HasList(listKey string) bool {
	raw, ok := n[listKey]
	if !ok {
		return false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return false
	}
	return len(items) > 0
}

func coerceInt64(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, fmt.Errorf("empty value")
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	case 'n', 't', 'f', '{', '[':
		return 0, fmt.Errorf("not a number: %s", raw)
	}
	if v, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("out of range: %s", raw)
	}
	return int64(f), nil
}

// entryKind tags a timeline entry as a single node or a group of sub-nodes.
type entryKind int

const (
	entrySingle entryKind = iota
	entryGroup
)

type timelineEntry struct {
	category string
	kind     entryKind
	raw      json.RawMessage
}

type objectField struct {
	key string
	raw json.RawMessage
}

// orderedObject decodes a JSON object keeping its keys in document order.
func orderedObject(raw json.RawMessage) ([]objectField, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, ErrNotObject
	}
	var out []objectField
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("tracking: unexpected object key %v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, objectField{key: key, raw: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func classifyTimeline(raw json.RawMessage) ([]timelineEntry, error) {
	fields, err := orderedObject(raw)
	if err != nil {
		return nil, err
	}
	out := make([]timelineEntry, 0, len(fields))
	for _, f := range fields {
		if !isObject(f.raw) {
			continue
		}
		kind := entrySingle
		if f.key == BranchTransferCategory {
			kind = entryGroup
		}
		out = append(out, timelineEntry{category: f.key, kind: kind, raw: f.raw})
	}
	return out, nil
}

// groupNodes returns the sub-nodes of a branch-transfer group. Non-object
// sub-nodes are dropped.
func groupNodes(raw json.RawMessage) []RawNode {
	var g struct {
		SubNodes []json.RawMessage `json:"subNodes"`
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil
	}
	out := make([]RawNode, 0, len(g.SubNodes))
	for _, sn := range g.SubNodes {
		if !isObject(sn) {
			continue
		}
		var n RawNode
		if err := json.Unmarshal(sn, &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
