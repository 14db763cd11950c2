// Package app wires configuration, storage, providers, the notifier and the
// watcher together and runs them under one supervisor.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"shipwatch/internal/config"
	"shipwatch/internal/notifier"
	"shipwatch/internal/observability/httpserver"
	"shipwatch/internal/provider/guide"
	"shipwatch/internal/provider/loginext"
	"shipwatch/internal/runtime/supervisor"
	"shipwatch/internal/schedule"
	"shipwatch/internal/storage"
	kit "shipwatch/internal/transport"
	"shipwatch/internal/transport/telegram"
	"shipwatch/internal/watcher"
	logx "shipwatch/pkg/logx"
)

const (
	stopTimeout = 10 * time.Second
	// minStaleAfter bounds how long the health check tolerates no finished cycle.
	minStaleAfter = 15 * time.Minute
)

type App struct {
	cfgm *config.ConfigManager

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	notif   *notifier.Service
	watcher *watcher.Watcher
	runner  *schedule.Runner
	http    *httpserver.Server

	staleAfter time.Duration
	startedAt  time.Time
	sup        atomic.Pointer[supervisor.Supervisor]
	// lastCycle is the unix-nano end time of the last finished cycle attempt.
	lastCycle atomic.Int64
}

// New loads the configuration and builds every component. Nothing runs until
// Run is called.
func New(cfgPath string) (*App, error) {
	return newApp(config.NewConfigManager(cfgPath))
}

func newApp(cfgm *config.ConfigManager) (*App, error) {
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logs, log := logx.New(mapLogConfig(cfg))
	a := &App{cfgm: cfgm, logs: logs, log: log.With(logx.String("comp", "app"))}
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error { return validate(c) })

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.store, err = storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a.notif = notifier.New(mapNotifierConfig(cfg, a.log), a.newSender(cfg, log), log.With(logx.String("comp", "notifier")))

	deps := watcher.Deps{
		Store:    a.store,
		Fetcher:  loginext.New(mapLoginextConfig(cfg), log.With(logx.String("comp", "loginext"))),
		Notifier: a.notif,
	}
	if gc, ok := mapGuideConfig(cfg); ok {
		deps.Guides = guide.New(gc, log.With(logx.String("comp", "guide")))
	} else if cfg.Guide.Enabled {
		a.log.Warn("guide enabled without endpoints; guide pipeline disabled")
	}
	a.watcher, err = watcher.New(mapWatcherConfig(cfg), deps, log.With(logx.String("comp", "watcher")))
	if err != nil {
		_ = a.store.Close()
		return nil, err
	}

	spec, loc, err := mapSchedule(cfg)
	if err != nil {
		_ = a.store.Close()
		return nil, err
	}
	a.runner = schedule.NewRunner(spec, loc, a.cycle, log.With(logx.String("comp", "schedule")))
	a.staleAfter = staleAfter(spec)

	if hc, ok := mapHTTPConfig(cfg); ok {
		a.http = httpserver.New(hc, a.health, log.With(logx.String("comp", "http")))
	}

	a.log.Info("shipwatch configured",
		logx.String("config", cfgm.Path()),
		logx.String("chat", chatLabel(cfg)),
		logx.Int("shipments", len(cfg.Loginext.Orders)),
		logx.String("schedule", spec.String()),
		logx.String("storage", sc.Driver+":"+sc.Path),
		logx.Bool("guide", deps.Guides != nil && cfg.Guide.Enabled),
	)
	return a, nil
}

// newSender returns nil when no bot token is configured; the notifier then
// logs and drops messages.
func (a *App) newSender(cfg *config.Config, log logx.Logger) kit.Sender {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		a.log.Warn("telegram token not set; notifications will be logged only")
		return nil
	}
	s, err := telegram.New(telegram.Config{
		Token:   cfg.Telegram.Token,
		Timeout: config.DurationOr(cfg.Telegram.Timeout, config.DefaultNotifyTimeout),
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		a.log.Warn("telegram sender unavailable; notifications will be logged only", logx.Err(err))
		return nil
	}
	return s
}

// Run blocks until ctx is cancelled or a component fails. A failed cycle
// (state could not be persisted) is returned so the process exits non-zero.
func (a *App) Run(ctx context.Context) error {
	a.startedAt = time.Now()
	sup := supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.sup.Store(sup)

	sup.Go("watcher.schedule", a.runner.Run)
	sup.Go("config.watch", a.cfgm.Watch)
	sup.Go("config.apply", a.applyReloads)
	sup.Go("systemd.watchdog", func(c context.Context) error {
		return watchdog(c, a.log, a.alive)
	})
	if a.http != nil {
		sup.GoRestart("http", a.http.Run, supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	}

	sdNotify(a.log, daemon.SdNotifyReady)
	a.log.Info("shipwatch started")

	<-sup.Context().Done()
	sdNotify(a.log, daemon.SdNotifyStopping)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if err := sup.Stop(stopCtx); err != nil {
		a.log.Warn("shutdown incomplete", logx.Err(err))
	}
	err := sup.Err()
	a.close()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info("shipwatch stopped")
	return nil
}

func (a *App) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("close storage", logx.Err(err))
	}
	_ = a.logs.Close()
}

func (a *App) cycle(ctx context.Context) error {
	defer a.lastCycle.Store(time.Now().UnixNano())
	_, err := a.watcher.RunCycle(ctx)
	return err
}

// applyReloads hands every published config to the watcher. Only the
// shipment list, message style and guide switch apply live.
func (a *App) applyReloads(ctx context.Context) error {
	sub := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-sub:
			if !ok {
				return nil
			}
			a.watcher.SetConfig(mapWatcherConfig(cfg))
			sections, _ := config.SummarizeChange(last, cfg)
			if rs := config.RestartRequired(sections); len(rs) > 0 {
				a.log.Warn("config change needs a restart to take effect", logx.String("sections", strings.Join(rs, ",")))
			}
			last = cfg
		}
	}
}

type healthStatus struct {
	Uptime    string    `json:"uptime"`
	LastCycle time.Time `json:"last_cycle,omitzero"`
	CycleID   string    `json:"cycle_id,omitempty"`
	Shipments int       `json:"shipments"`
	Updated   int       `json:"updated"`
	Failed    int       `json:"failed"`
	Delivered int       `json:"notifications_delivered"`
	Dropped   int       `json:"notifications_dropped"`

	Tasks *supervisor.Snapshot `json:"supervisor,omitempty"`
}

func (a *App) health() (any, bool) {
	st := healthStatus{Uptime: time.Since(a.startedAt).Round(time.Second).String()}
	if rep, ok := a.watcher.LastReport(); ok {
		st.LastCycle = rep.StartedAt.Add(rep.Duration)
		st.CycleID = rep.ID
		st.Shipments = len(rep.Results)
		st.Updated = rep.Count(watcher.StatusUpdated)
		st.Failed = rep.Count(watcher.StatusFetchFailed) + rep.Count(watcher.StatusParseFailed) + rep.Count(watcher.StatusPanicked)
	}
	if sup := a.sup.Load(); sup != nil {
		snap := sup.Snapshot()
		st.Tasks = &snap
	}
	for _, h := range a.notif.History() {
		if h.Delivered {
			st.Delivered++
		} else {
			st.Dropped++
		}
	}
	return st, a.alive()
}

// alive reports whether a cycle finished recently. Before the first cycle the
// process start time is used.
func (a *App) alive() bool {
	if a.staleAfter <= 0 {
		return true
	}
	last := a.startedAt
	if ns := a.lastCycle.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return time.Since(last) < a.staleAfter
}

// staleAfter is zero (never stale) for cron schedules, whose gaps are unknown.
func staleAfter(spec schedule.Spec) time.Duration {
	if spec.Kind != schedule.KindInterval {
		return 0
	}
	return max(3*spec.Every, minStaleAfter)
}

func chatLabel(cfg *config.Config) string {
	if strings.TrimSpace(cfg.Telegram.ChatID) == "" {
		return "(not set)"
	}
	if cfg.Telegram.ThreadID != 0 {
		return fmt.Sprintf("%s#%d", cfg.Telegram.ChatID, cfg.Telegram.ThreadID)
	}
	return cfg.Telegram.ChatID
}
