package watcher

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"shipwatch/internal/observability/metrics"
	"shipwatch/internal/storage"
	"shipwatch/internal/tracking"
	logx "shipwatch/pkg/logx"
)

const refPlaceholder = "{ref}"

// processGuide runs scan, dedup, validate, resolve, notify and commit for
// the hand-off code found in ev. Any failed step leaves LastGuideCode
// untouched so the next cycle retries with the same input. The commit is
// persisted immediately; if that save fails the in-memory code is rolled
// back.
func (w *Watcher) processGuide(ctx context.Context, log logx.Logger, cfg Config, state storage.State, ev tracking.NormalizedEvent, res *ShipmentResult) {
	code, ok := ev.GuideCode()
	if !ok {
		res.GuideStatus = GuideNoCode
		return
	}
	res.GuideCode = code
	log = log.With(logx.String("guide", code))

	prev := state[res.Key]
	if prev.LastGuideCode == code {
		res.GuideStatus = GuideDuplicate
		log.Debug("guide already handled")
		return
	}

	if err := w.deps.Guides.Validate(ctx, code); err != nil {
		res.GuideStatus = GuideRejected
		metrics.GuidesTotal.WithLabelValues(string(GuideRejected)).Inc()
		log.Warn("guide validation failed", logx.Err(err))
		return
	}

	ref, err := w.deps.Guides.Resolve(ctx, code)
	if err != nil || strings.TrimSpace(ref) == "" {
		res.GuideStatus = GuideUnresolved
		metrics.GuidesTotal.WithLabelValues(string(GuideUnresolved)).Inc()
		log.Warn("guide reference not resolved", logx.Err(err))
		return
	}

	delivered := w.deps.Notifier.Notify(ctx, tracking.GuideMessage(res.ShipmentID, code, trackingURL(cfg.Guide.TrackingURL, ref)))
	metrics.NotificationsTotal.WithLabelValues("guide", strconv.FormatBool(delivered)).Inc()

	next := prev
	next.LastGuideCode = code
	state[res.Key] = next
	if err := w.save(ctx, state); err != nil {
		state[res.Key] = prev
		res.GuideStatus = GuideCommitFailed
		metrics.GuidesTotal.WithLabelValues(string(GuideCommitFailed)).Inc()
		log.Error("guide commit failed; will retry next cycle", logx.Err(err))
		return
	}
	res.GuideStatus = GuideCommitted
	metrics.GuidesTotal.WithLabelValues(string(GuideCommitted)).Inc()
	log.Info("guide handled", logx.String("ref", ref), logx.Bool("notified", delivered))
}

func trackingURL(tmpl, ref string) string {
	return strings.ReplaceAll(tmpl, refPlaceholder, url.QueryEscape(ref))
}
