package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	HTTP     HTTPConfig     `json:"http,omitempty"`

	Schedule ScheduleConfig `json:"schedule"`
	Storage  StorageConfig  `json:"storage"`
	Watcher  WatcherConfig  `json:"watcher"`

	Loginext LoginextConfig `json:"loginext"`
	Guide    GuideConfig    `json:"guide"`
}

// TelegramConfig controls the outbound chat notifier.
//
// A missing token or chat id does not fail startup: notifications are logged
// and dropped instead.
type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID string `json:"chat_id"`
	// ThreadID targets a forum topic inside ChatID (0 = none).
	ThreadID int `json:"thread_id,omitempty"`

	// Timeout is a Go duration string (default "20s").
	Timeout    string `json:"timeout,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	RetryMax   int    `json:"retry_max,omitempty"`
	RetryBase  string `json:"retry_base,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// HTTPConfig controls the optional observability server (/metrics, /healthz,
// /debug/pprof/).
//
// Prefer binding to localhost (e.g. "127.0.0.1:9090").
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`
	// Token is an optional bearer token for /debug/pprof/ (do not log).
	Token string `json:"token,omitempty"`
}

// ScheduleConfig selects the cycle trigger.
//
// Spec accepts either a Go duration ("3m", "every 3m") or a cron expression
// ("*/5 * * * *", "@every 3m"). When empty, IntervalSeconds is used.
type ScheduleConfig struct {
	Spec            string `json:"spec,omitempty"`
	IntervalSeconds int    `json:"interval_seconds,omitempty"`
	// Timezone applies to cron expressions (IANA name, default Local).
	Timezone string `json:"timezone,omitempty"`
}

// StorageConfig controls where per-shipment state is persisted.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./estado.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type WatcherConfig struct {
	// PersistMode is "cycle" (one save after the batch) or "shipment"
	// (save after every state change).
	PersistMode string `json:"persist_mode,omitempty"`

	// Message formatting. Timestamps are rendered in a fixed-offset zone.
	Title               string `json:"title,omitempty"`
	TimezoneOffsetHours *int   `json:"timezone_offset_hours,omitempty"`
	ZoneLabel           string `json:"zone_label,omitempty"`
}

type LoginextConfig struct {
	Orders   ShipmentList `json:"orders"`
	URL      string       `json:"url,omitempty"`
	Auth     string       `json:"auth,omitempty"`
	UserType string       `json:"user_type,omitempty"`
	IDFields []string     `json:"id_fields,omitempty"`
	// Timeout is a Go duration string (default "25s").
	Timeout string `json:"timeout,omitempty"`
}

type GuideConfig struct {
	Enabled bool `json:"enabled"`
	// ValidateURL and DetailURL contain a "{code}" placeholder.
	ValidateURL string `json:"validate_url,omitempty"`
	DetailURL   string `json:"detail_url,omitempty"`
	// TrackingURL contains a "{ref}" placeholder.
	TrackingURL     string   `json:"tracking_url,omitempty"`
	AuthHeader      string   `json:"auth_header,omitempty"`
	AuthValue       string   `json:"auth_value,omitempty"`
	ReferenceFields []string `json:"reference_fields,omitempty"`
	Timeout         string   `json:"timeout,omitempty"`
}

// ShipmentList accepts either a JSON array (elements of any scalar type) or a
// single string holding a JSON array or a comma-separated list.
type ShipmentList []string

func (l *ShipmentList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = ParseShipmentList(s)
		return nil
	case '[':
		var raw []json.RawMessage
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		*l = shipmentsFromJSON(raw)
		return nil
	default:
		return fmt.Errorf("orders: expected array or string, got %s", firstToken(b))
	}
}

func firstToken(b []byte) string {
	s := string(b)
	if len(s) > 16 {
		s = s[:16] + "..."
	}
	return strings.TrimSpace(s)
}
