package tracking

// IsNew reports whether ev is newer than the last persisted timestamp.
//
// Strictly greater: re-serving the same event, or a different node with the
// same timestamp, is treated as already seen.
func IsNew(ev NormalizedEvent, lastEventTS int64) bool {
	return ev.TimestampMS > lastEventTS
}
