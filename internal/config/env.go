package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment keys. Every key is optional; a non-empty value overrides the
// corresponding file setting.
const (
	EnvTelegramToken = "TELEGRAM_TOKEN"
	EnvChatID        = "CHAT_ID"
	EnvOrders        = "LOGINEXT_ORDERS"
	EnvLoginextURL   = "LOGINEXT_URL_DETAILS"
	EnvLoginextAuth  = "LOGINEXT_AUTH"
	EnvStateFile     = "STATE_FILE"
	EnvPollInterval  = "POLL_INTERVAL_SECONDS"
	EnvSchedule      = "SHIPWATCH_SCHEDULE"
	EnvLogLevel      = "SHIPWATCH_LOG_LEVEL"
	EnvGuideValidate = "GUIDE_VALIDATE_URL"
	EnvGuideDetail   = "GUIDE_DETAIL_URL"
	EnvGuideTracking = "GUIDE_TRACKING_URL"
	EnvMetricsAddr   = "METRICS_ADDR"
)

// ApplyEnv overlays environment values onto cfg. getenv defaults to os.Getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if cfg == nil {
		return nil
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	get := func(k string) (string, bool) {
		v := strings.TrimSpace(getenv(k))
		return v, v != ""
	}

	if v, ok := get(EnvTelegramToken); ok {
		cfg.Telegram.Token = v
	}
	if v, ok := get(EnvChatID); ok {
		cfg.Telegram.ChatID = v
	}
	if v, ok := get(EnvOrders); ok {
		cfg.Loginext.Orders = ParseShipmentList(v)
	}
	if v, ok := get(EnvLoginextURL); ok {
		cfg.Loginext.URL = v
	}
	if v, ok := get(EnvLoginextAuth); ok {
		cfg.Loginext.Auth = v
	}
	if v, ok := get(EnvStateFile); ok {
		cfg.Storage.Path = v
	}
	if v, ok := get(EnvPollInterval); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q: %w", EnvPollInterval, v, err)
		}
		cfg.Schedule.IntervalSeconds = n
	}
	if v, ok := get(EnvSchedule); ok {
		cfg.Schedule.Spec = v
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
	if v, ok := get(EnvGuideValidate); ok {
		cfg.Guide.ValidateURL = v
	}
	if v, ok := get(EnvGuideDetail); ok {
		cfg.Guide.DetailURL = v
	}
	if v, ok := get(EnvGuideTracking); ok {
		cfg.Guide.TrackingURL = v
	}
	if v, ok := get(EnvMetricsAddr); ok {
		cfg.HTTP.Enabled = true
		cfg.HTTP.Addr = v
	}
	return nil
}
