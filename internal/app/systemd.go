package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "shipwatch/pkg/logx"
)

// sdNotify is a no-op outside systemd (NOTIFY_SOCKET unset).
func sdNotify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify", logx.String("state", state))
	}
}

// watchdog pings systemd at half the configured WatchdogSec while the last
// cycle is recent enough. A stalled watcher stops pinging and gets restarted.
func watchdog(ctx context.Context, log logx.Logger, alive func() bool) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return nil
	}
	tick := time.NewTicker(interval / 2)
	defer tick.Stop()
	log.Info("systemd watchdog enabled", logx.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if alive() {
				sdNotify(log, daemon.SdNotifyWatchdog)
			} else {
				log.Warn("watchdog ping skipped; watcher looks stalled")
			}
		}
	}
}
