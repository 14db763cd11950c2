package tracking

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrNoData is returned by DecodeData when the response has no data container.
var ErrNoData = errors.New("tracking: response has no data")

// Response is a raw provider response. Data is kept raw so that a malformed
// data container is a normalization gap rather than a transport failure.
type Response struct {
	Data json.RawMessage `json:"data"`
}

// HasData reports whether the data container is present and non-empty
// (not null, not {}, not [], not "").
func (r *Response) HasData() bool {
	if r == nil {
		return false
	}
	d := bytes.TrimSpace(r.Data)
	switch string(d) {
	case "", "null", "{}", "[]", `""`, "false", "0":
		return false
	}
	return true
}

// Data is the decoded data container.
type Data struct {
	OrderNo     string
	OrderStatus string
	Timeline    json.RawMessage
}

// DecodeData extracts the data container. A missing container yields ErrNoData;
// a container that is not an object yields ErrNotObject.
func DecodeData(resp *Response) (Data, error) {
	if resp == nil || len(bytes.TrimSpace(resp.Data)) == 0 || string(bytes.TrimSpace(resp.Data)) == "null" {
		return Data{}, ErrNoData
	}
	if !isObject(resp.Data) {
		return Data{}, ErrNotObject
	}
	var bag RawNode
	if err := json.Unmarshal(resp.Data, &bag); err != nil {
		return Data{}, err
	}
	d := Data{Timeline: bag["timeline"]}
	d.OrderNo = scalarString(bag["orderNo"])
	d.OrderStatus = scalarString(bag["orderStatus"])
	return d, nil
}

// scalarString renders a JSON string or number as text; anything else is "".
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// NormalizedEvent is the canonical "most recent tracking update" of a response.
type NormalizedEvent struct {
	TimestampMS int64
	// EventLabel is the trackingEvent label; HasEventLabel is false when the
	// provider omitted it (or sent null).
	EventLabel    string
	HasEventLabel bool
	// NodeLabel is nodeName, falling back to nodeType when nodeName is empty.
	NodeLabel string
	Category  string
	Raw       RawNode
}

// Candidates returns every timeline node carrying a usable timestamp, in
// deterministic traversal order: timeline categories in document order, and
// branch-transfer sub-nodes in list order.
//
// Nodes without eventDt, or with an eventDt that fails integer coercion, are skipped.
func Candidates(timeline json.RawMessage) []NormalizedEvent {
	if !isObject(timeline) {
		return nil
	}
	entries, err := classifyTimeline(timeline)
	if err != nil {
		return nil
	}

	var out []NormalizedEvent
	add := func(category string, n RawNode) {
		ts, kind := n.Timestamp()
		if kind != TimestampPresent {
			return
		}
		out = append(out, newEvent(category, ts, n))
	}
	for _, e := range entries {
		switch e.kind {
		case entryGroup:
			for _, n := range groupNodes(e.raw) {
				add(e.category, n)
			}
		case entrySingle:
			var n RawNode
			if err := json.Unmarshal(e.raw, &n); err != nil {
				continue
			}
			add(e.category, n)
		}
	}
	return out
}

func newEvent(category string, ts int64, n RawNode) NormalizedEvent {
	ev := NormalizedEvent{TimestampMS: ts, Category: category, Raw: n}
	ev.EventLabel, ev.HasEventLabel = n.String("trackingEvent")
	ev.NodeLabel, _ = n.String("nodeName")
	if ev.NodeLabel == "" {
		ev.NodeLabel, _ = n.String("nodeType")
	}
	return ev
}

// Latest picks the candidate with the maximum timestamp. On ties the last one
// encountered wins (same as a stable ascending sort followed by taking the last).
func Latest(cands []NormalizedEvent) (NormalizedEvent, bool) {
	if len(cands) == 0 {
		return NormalizedEvent{}, false
	}
	best := 0
	for i := 1; i < len(cands); i++ {
		if cands[i].TimestampMS >= cands[best].TimestampMS {
			best = i
		}
	}
	return cands[best], true
}

// Normalize returns the latest event of a raw response, or ok=false when the
// response has no data container or no timestamped timeline node.
func Normalize(resp *Response) (NormalizedEvent, bool) {
	d, err := DecodeData(resp)
	if err != nil {
		return NormalizedEvent{}, false
	}
	return Latest(Candidates(d.Timeline))
}
