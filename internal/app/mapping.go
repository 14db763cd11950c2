package app

import (
	"fmt"
	"strings"
	"time"

	"shipwatch/internal/config"
	"shipwatch/internal/notifier"
	"shipwatch/internal/observability/httpserver"
	"shipwatch/internal/provider/guide"
	"shipwatch/internal/provider/loginext"
	"shipwatch/internal/schedule"
	"shipwatch/internal/storage"
	"shipwatch/internal/tracking"
	kit "shipwatch/internal/transport"
	"shipwatch/internal/watcher"
	logx "shipwatch/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "file", "json":
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy := config.DurationOr(sc.BusyTimeout, time.Second)
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapLoginextConfig(cfg *config.Config) loginext.Config {
	return loginext.Config{
		URL:      cfg.Loginext.URL,
		Auth:     cfg.Loginext.Auth,
		UserType: cfg.Loginext.UserType,
		IDFields: cfg.Loginext.IDFields,
		Timeout:  config.DurationOr(cfg.Loginext.Timeout, config.DefaultFetchTimeout),
	}
}

// mapGuideConfig returns ok=false when no guide endpoints are configured.
func mapGuideConfig(cfg *config.Config) (guide.Config, bool) {
	g := cfg.Guide
	if strings.TrimSpace(g.ValidateURL) == "" || strings.TrimSpace(g.DetailURL) == "" {
		return guide.Config{}, false
	}
	return guide.Config{
		ValidateURL:     g.ValidateURL,
		DetailURL:       g.DetailURL,
		AuthHeader:      g.AuthHeader,
		AuthValue:       g.AuthValue,
		ReferenceFields: g.ReferenceFields,
		Timeout:         config.DurationOr(g.Timeout, guide.DefaultTimeout),
	}, true
}

// mapNotifierConfig resolves the chat target. A missing or malformed chat id
// leaves the target zero, which disables delivery without failing startup.
func mapNotifierConfig(cfg *config.Config, log logx.Logger) notifier.Config {
	t := cfg.Telegram
	var target kit.ChatTarget
	if strings.TrimSpace(t.ChatID) != "" {
		var err error
		target, err = kit.ParseChatTarget(t.ChatID, t.ThreadID)
		if err != nil {
			log.Warn("invalid telegram chat id; notifications disabled", logx.Err(err))
		}
	}
	return notifier.Config{
		Target:     target,
		RatePerSec: t.RatePerSec,
		RetryMax:   t.RetryMax,
		RetryBase:  config.DurationOr(t.RetryBase, 0),
		Timeout:    config.DurationOr(t.Timeout, config.DefaultNotifyTimeout),
	}
}

func mapWatcherConfig(cfg *config.Config) watcher.Config {
	offset := config.DefaultOffsetHours
	if cfg.Watcher.TimezoneOffsetHours != nil {
		offset = *cfg.Watcher.TimezoneOffsetHours
	}
	mode := watcher.PersistCycle
	if strings.EqualFold(strings.TrimSpace(cfg.Watcher.PersistMode), config.PersistShipment) {
		mode = watcher.PersistShipment
	}
	return watcher.Config{
		Shipments:   []string(cfg.Loginext.Orders),
		PersistMode: mode,
		Style: tracking.MessageStyle{
			Title:     cfg.Watcher.Title,
			Location:  tracking.FixedZone(cfg.Watcher.ZoneLabel, offset),
			ZoneLabel: cfg.Watcher.ZoneLabel,
		},
		Guide: watcher.GuideConfig{
			Enabled:     cfg.Guide.Enabled,
			TrackingURL: cfg.Guide.TrackingURL,
		},
	}
}

// mapSchedule prefers schedule.spec and falls back to interval_seconds.
func mapSchedule(cfg *config.Config) (schedule.Spec, *time.Location, error) {
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Schedule.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return schedule.Spec{}, nil, fmt.Errorf("schedule.timezone: invalid %q: %w", tz, err)
		}
		loc = l
	}
	if raw := strings.TrimSpace(cfg.Schedule.Spec); raw != "" {
		spec, err := schedule.Parse(raw)
		if err != nil {
			return schedule.Spec{}, nil, fmt.Errorf("schedule.spec: %w", err)
		}
		return spec, loc, nil
	}
	spec, err := schedule.Every(cfg.Schedule.IntervalSeconds)
	if err != nil {
		return schedule.Spec{}, nil, fmt.Errorf("schedule.interval_seconds: %w", err)
	}
	return spec, loc, nil
}

func mapHTTPConfig(cfg *config.Config) (httpserver.Config, bool) {
	h := cfg.HTTP
	if !h.Enabled {
		return httpserver.Config{}, false
	}
	addr := strings.TrimSpace(h.Addr)
	if addr == "" {
		addr = config.DefaultHTTPAddr
	}
	return httpserver.Config{Addr: addr, Pprof: h.Pprof, Token: h.Token}, true
}

// validate rejects configs the running process could not apply.
func validate(cfg *config.Config) error {
	if _, _, err := mapSchedule(cfg); err != nil {
		return err
	}
	_, err := mapStorageConfig(cfg)
	return err
}
