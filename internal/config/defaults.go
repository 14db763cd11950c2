package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultStateFile       = "estado.json"
	DefaultIntervalSeconds = 180
	DefaultFetchTimeout    = 25 * time.Second
	DefaultNotifyTimeout   = 20 * time.Second
	DefaultOffsetHours     = -6
	DefaultZoneLabel       = "Tegucigalpa"
	DefaultTitle           = "🚚 Loginext"
	DefaultHTTPAddr        = "127.0.0.1:9090"

	PersistCycle    = "cycle"
	PersistShipment = "shipment"
)

// ApplyDefaults fills zero-valued settings. It does not touch the shipment
// list: an empty list is a valid (idle) configuration.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if strings.TrimSpace(cfg.Storage.Driver) == "" {
		cfg.Storage.Driver = "file"
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = DefaultStateFile
	}
	if cfg.Schedule.IntervalSeconds <= 0 {
		cfg.Schedule.IntervalSeconds = DefaultIntervalSeconds
	}
	if strings.TrimSpace(cfg.Watcher.PersistMode) == "" {
		cfg.Watcher.PersistMode = PersistCycle
	}
	if strings.TrimSpace(cfg.Watcher.Title) == "" {
		cfg.Watcher.Title = DefaultTitle
	}
	if cfg.Watcher.TimezoneOffsetHours == nil {
		off := DefaultOffsetHours
		cfg.Watcher.TimezoneOffsetHours = &off
	}
	if strings.TrimSpace(cfg.Watcher.ZoneLabel) == "" {
		cfg.Watcher.ZoneLabel = DefaultZoneLabel
	}
	if cfg.HTTP.Enabled && strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = DefaultHTTPAddr
	}
}

// Validate reports settings that cannot be started with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	switch strings.ToLower(strings.TrimSpace(cfg.Watcher.PersistMode)) {
	case "", PersistCycle, PersistShipment:
	default:
		errs = append(errs, fmt.Errorf("watcher.persist_mode: unknown mode %q", cfg.Watcher.PersistMode))
	}
	if off := cfg.Watcher.TimezoneOffsetHours; off != nil && (*off < -14 || *off > 14) {
		errs = append(errs, fmt.Errorf("watcher.timezone_offset_hours: %d out of range", *off))
	}
	if cfg.Schedule.IntervalSeconds < 0 {
		errs = append(errs, errors.New("schedule.interval_seconds must be >= 0"))
	}
	for _, f := range []struct{ path, raw string }{
		{"telegram.timeout", cfg.Telegram.Timeout},
		{"telegram.retry_base", cfg.Telegram.RetryBase},
		{"loginext.timeout", cfg.Loginext.Timeout},
		{"guide.timeout", cfg.Guide.Timeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Guide.Enabled {
		if strings.TrimSpace(cfg.Guide.ValidateURL) == "" || strings.TrimSpace(cfg.Guide.DetailURL) == "" {
			errs = append(errs, errors.New("guide: validate_url and detail_url are required when enabled"))
		}
		if !strings.Contains(cfg.Guide.TrackingURL, "{ref}") {
			errs = append(errs, errors.New("guide.tracking_url must contain {ref}"))
		}
	}
	return errors.Join(errs...)
}
