// Package watcher runs polling cycles: for every configured shipment it
// fetches the provider response, picks the latest tracking event, notifies
// when that event is newer than the persisted marker, and runs the
// secondary-guide pipeline. State is persisted once per cycle (or after every
// change, depending on the persist mode).
//
// Shipments are processed sequentially. A failing or panicking shipment is
// reported in its ShipmentResult and never stops the batch; only a failed
// state save fails the cycle.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"shipwatch/internal/observability/metrics"
	"shipwatch/internal/storage"
	"shipwatch/internal/tracking"
	logx "shipwatch/pkg/logx"
)

const saveTimeout = 10 * time.Second

type Deps struct {
	Store    storage.Store
	Fetcher  Fetcher
	Guides   GuideProvider // optional
	Notifier Notifier
}

type Watcher struct {
	deps Deps
	log  logx.Logger

	cfg  atomic.Pointer[Config]
	last atomic.Pointer[CycleReport]

	// cycles never overlap
	mu sync.Mutex
}

func New(cfg Config, deps Deps, log logx.Logger) (*Watcher, error) {
	if deps.Store == nil || deps.Fetcher == nil || deps.Notifier == nil {
		return nil, errors.New("watcher: store, fetcher and notifier are required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	w := &Watcher{deps: deps, log: log}
	w.SetConfig(cfg)
	return w, nil
}

// SetConfig replaces the snapshot used from the next cycle on.
func (w *Watcher) SetConfig(cfg Config) {
	cfg.Shipments = append([]string(nil), cfg.Shipments...)
	if cfg.PersistMode == "" {
		cfg.PersistMode = PersistCycle
	}
	w.cfg.Store(&cfg)
}

func (w *Watcher) Config() Config { return *w.cfg.Load() }

// LastReport returns the report of the last finished cycle.
func (w *Watcher) LastReport() (CycleReport, bool) {
	r := w.last.Load()
	if r == nil {
		return CycleReport{}, false
	}
	return *r, true
}

// RunCycle processes every configured shipment once. The returned error is
// non-nil only when state could not be loaded or saved.
func (w *Watcher) RunCycle(ctx context.Context) (CycleReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cfg := w.Config()
	rep := CycleReport{ID: uuid.NewString(), StartedAt: time.Now()}
	log := w.log.With(logx.String("cycle", rep.ID))
	metrics.TrackedShipments.Set(float64(len(cfg.Shipments)))

	err := w.runCycle(ctx, log, cfg, &rep)
	rep.Duration = time.Since(rep.StartedAt)
	metrics.CycleDuration.Observe(rep.Duration.Seconds())
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		log.Error("cycle failed", logx.Err(err), logx.Duration("took", rep.Duration))
		return rep, err
	}

	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	metrics.LastCycleTimestamp.SetToCurrentTime()
	w.last.Store(&rep)
	log.Info("cycle done",
		logx.Int("shipments", len(rep.Results)),
		logx.Int("updated", rep.Count(StatusUpdated)),
		logx.Int("failed", rep.Count(StatusFetchFailed)+rep.Count(StatusParseFailed)+rep.Count(StatusPanicked)),
		logx.Duration("took", rep.Duration),
	)
	return rep, nil
}

func (w *Watcher) runCycle(ctx context.Context, log logx.Logger, cfg Config, rep *CycleReport) error {
	state, err := w.deps.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if state == nil {
		state = storage.State{}
	}

	if len(cfg.Shipments) == 0 {
		log.Warn("no shipments configured; set LOGINEXT_ORDERS or loginext.orders")
	}

	dirty := false
	for _, id := range cfg.Shipments {
		if ctx.Err() != nil {
			log.Info("cycle interrupted", logx.Int("remaining", len(cfg.Shipments)-len(rep.Results)))
			break
		}
		res := w.processShipment(ctx, log, cfg, state, id)
		rep.Results = append(rep.Results, res)
		metrics.ShipmentsTotal.WithLabelValues(string(res.Status)).Inc()
		if !res.changed {
			continue
		}
		dirty = true
		if cfg.PersistMode == PersistShipment {
			if err := w.save(ctx, state); err != nil {
				return err
			}
			rep.Saves++
			dirty = false
		}
	}

	if cfg.PersistMode == PersistCycle || dirty {
		if err := w.save(ctx, state); err != nil {
			return err
		}
		rep.Saves++
	}
	return nil
}

// save persists state even when ctx is already cancelled, so events that were
// notified before shutdown are not announced again.
func (w *Watcher) save(ctx context.Context, state storage.State) error {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := w.deps.Store.Save(sctx, state); err != nil {
		metrics.StateSaveFailures.Inc()
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (w *Watcher) processShipment(ctx context.Context, log logx.Logger, cfg Config, state storage.State, id string) (res ShipmentResult) {
	res = ShipmentResult{ShipmentID: id, Key: storage.Key(w.deps.Fetcher.Name(), id)}
	log = log.With(logx.String("shipment", id))

	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusPanicked
			res.Err = fmt.Errorf("panic: %v", r)
			log.Error("shipment panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()

	resp, err := w.deps.Fetcher.Fetch(ctx, id)
	if err != nil {
		res.Status, res.Err = StatusFetchFailed, err
		log.Warn("fetch failed", logx.Err(err))
		return res
	}

	data, err := tracking.DecodeData(resp)
	switch {
	case errors.Is(err, tracking.ErrNoData):
		res.Status = StatusNoEvent
		log.Info("no data in response")
		return res
	case err != nil:
		res.Status, res.Err = StatusParseFailed, err
		log.Warn("unexpected response shape", logx.Err(err))
		return res
	}

	ev, ok := tracking.Latest(tracking.Candidates(data.Timeline))
	if !ok {
		res.Status = StatusNoEvent
		log.Info("no timestamped events in timeline")
		return res
	}
	res.EventTS = ev.TimestampMS

	st := state[res.Key]
	if tracking.IsNew(ev, st.LastEventTS) {
		res.Notified = w.deps.Notifier.Notify(ctx, tracking.EventMessage(cfg.Style, id, data, ev))
		metrics.NotificationsTotal.WithLabelValues("event", strconv.FormatBool(res.Notified)).Inc()
		st.Advance(ev.TimestampMS)
		state[res.Key] = st
		res.Status, res.changed = StatusUpdated, true
		log.Info("new event",
			logx.Int64("event_ts", ev.TimestampMS),
			logx.String("event", ev.EventLabel),
			logx.String("node", ev.NodeLabel),
			logx.Bool("notified", res.Notified),
		)
	} else {
		res.Status = StatusUnchanged
		log.Info("no new events",
			logx.Int64("last_saved_ts", st.LastEventTS),
			logx.String("last_saved", tracking.FormatLocal(st.LastEventTS, cfg.Style.Location)),
		)
	}

	if cfg.Guide.Enabled && w.deps.Guides != nil {
		w.processGuide(ctx, log, cfg, state, ev, &res)
	}
	return res
}
