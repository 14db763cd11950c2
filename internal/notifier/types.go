package notifier

import (
	"time"

	kit "shipwatch/internal/transport"
)

// Config controls outbound delivery.
type Config struct {
	Target kit.ChatTarget

	RatePerSec int
	// RetryMax is the number of retries after the first attempt
	// (0 = default, negative = none).
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	// Timeout bounds a single send attempt.
	Timeout     time.Duration
	HistorySize int
}

type HistoryItem struct {
	At        time.Time
	Delivered bool
	Attempts  int
	Text      string
	Error     string `json:",omitempty"`
}
