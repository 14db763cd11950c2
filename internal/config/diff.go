package config

import (
	"reflect"
	"sort"
	"strings"

	logx "shipwatch/pkg/logx"
)

// SummarizeChange returns the changed top-level sections and safe structured
// attrs for logging. Secrets (bot token, provider auth, pprof token) are
// never included, only whether they are set.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Telegram, newCfg.Telegram) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
			logx.String("telegram.chat_id", newCfg.Telegram.ChatID),
		)
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs, logx.String("logging.level", newCfg.Logging.Level))
	}
	if !reflect.DeepEqual(oldCfg.HTTP, newCfg.HTTP) {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", newCfg.HTTP.Addr),
		)
	}
	if oldCfg.Schedule != newCfg.Schedule {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.String("schedule.spec", newCfg.Schedule.Spec),
			logx.Int("schedule.interval_seconds", newCfg.Schedule.IntervalSeconds),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if !reflect.DeepEqual(oldCfg.Watcher, newCfg.Watcher) {
		changed = append(changed, "watcher")
		attrs = append(attrs, logx.String("watcher.persist_mode", newCfg.Watcher.PersistMode))
	}
	if !reflect.DeepEqual(oldCfg.Loginext, newCfg.Loginext) {
		changed = append(changed, "loginext")
		attrs = append(attrs,
			logx.Int("loginext.orders", len(newCfg.Loginext.Orders)),
			logx.Bool("loginext.auth_set", strings.TrimSpace(newCfg.Loginext.Auth) != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Guide, newCfg.Guide) {
		changed = append(changed, "guide")
		attrs = append(attrs, logx.Bool("guide.enabled", newCfg.Guide.Enabled))
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired reports sections whose change only takes effect after a
// restart. Shipment lists, message formatting and the guide pipeline are
// picked up at the next cycle.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		switch s {
		case "telegram", "logging", "http", "schedule", "storage":
			out = append(out, s)
		}
	}
	return out
}
