package watcher

import (
	"context"
	"time"

	"shipwatch/internal/tracking"
)

// Fetcher looks up one shipment at a tracking provider. Name namespaces the
// provider's keys in the state store.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, shipmentID string) (*tracking.Response, error)
}

// GuideProvider is the secondary carrier that receives hand-off shipments.
type GuideProvider interface {
	Validate(ctx context.Context, code string) error
	Resolve(ctx context.Context, code string) (string, error)
}

// Notifier delivers a message and reports whether it was delivered. It never
// fails the caller.
type Notifier interface {
	Notify(ctx context.Context, text string) bool
}

type PersistMode string

const (
	// PersistCycle saves once after every shipment was processed.
	PersistCycle PersistMode = "cycle"
	// PersistShipment saves after each shipment whose state changed.
	PersistShipment PersistMode = "shipment"
)

// Config is an immutable snapshot read at the start of each cycle.
type Config struct {
	Shipments   []string
	PersistMode PersistMode
	Style       tracking.MessageStyle
	Guide       GuideConfig
}

type GuideConfig struct {
	Enabled bool
	// TrackingURL contains a "{ref}" placeholder for the resolved reference.
	TrackingURL string
}

type Status string

const (
	StatusUpdated     Status = "updated"
	StatusUnchanged   Status = "unchanged"
	StatusNoEvent     Status = "no_event"
	StatusFetchFailed Status = "fetch_failed"
	StatusParseFailed Status = "parse_failed"
	StatusPanicked    Status = "panicked"
)

type GuideStatus string

const (
	GuideNone         GuideStatus = ""
	GuideNoCode       GuideStatus = "no_code"
	GuideDuplicate    GuideStatus = "duplicate"
	GuideRejected     GuideStatus = "rejected"
	GuideUnresolved   GuideStatus = "unresolved"
	GuideCommitted    GuideStatus = "committed"
	GuideCommitFailed GuideStatus = "commit_failed"
)

// ShipmentResult is the outcome of one shipment in one cycle.
type ShipmentResult struct {
	ShipmentID string
	Key        string
	Status     Status
	// EventTS is the latest event timestamp seen (0 when none).
	EventTS  int64
	Notified bool

	GuideCode   string
	GuideStatus GuideStatus

	Err error

	changed bool
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Results   []ShipmentResult
	Saves     int
}

// Count returns how many shipments ended with status s.
func (r CycleReport) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}
