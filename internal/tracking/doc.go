// Package tracking turns raw, inconsistently shaped provider responses into a
// single latest event per shipment and decides whether that event is new.
//
// Timeline shape handled here:
//
//	{"data": {"orderNo": "...", "orderStatus": "...", "timeline": {
//	    "pickup":           {"eventDt": 1700000000000, "trackingEvent": "...", "nodeName": "..."},
//	    "branch_to_branch": {"subNodes": [{"eventDt": ...}, ...]},
//	    ...
//	}}}
//
// Entries without a usable eventDt are skipped, never fatal.
package tracking
