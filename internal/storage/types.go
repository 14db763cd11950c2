package storage

import (
	"errors"
	"time"
)

var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrClosed        = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "file" (default): JSON state file
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// ShipmentState is the persisted marker of one shipment.
type ShipmentState struct {
	// LastEventTS is the timestamp (ms) of the last notified event. 0 means never seen.
	LastEventTS int64
	// LastGuideCode is the last secondary guide code fully handled.
	LastGuideCode string
}

// Advance raises LastEventTS to ts. It never moves backwards.
func (s *ShipmentState) Advance(ts int64) {
	if ts > s.LastEventTS {
		s.LastEventTS = ts
	}
}

// State maps namespaced shipment keys to their state.
type State map[string]ShipmentState

// Key namespaces a shipment id under a provider so several providers can
// share one store, e.g. Key("loginext", "409460981-1") == "loginext::409460981-1".
func Key(provider, shipmentID string) string {
	return provider + "::" + shipmentID
}
