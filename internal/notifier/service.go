package notifier

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "shipwatch/internal/transport"
	logx "shipwatch/pkg/logx"
)

// ErrDisabled is logged when a message is dropped because no sender or chat
// target is configured.
var ErrDisabled = errors.New("notifier disabled")

const (
	defaultRatePerSec    = 1
	defaultRetryMax      = 2
	defaultRetryBase     = 500 * time.Millisecond
	defaultRetryMaxDelay = 10 * time.Second
	defaultTimeout       = 20 * time.Second
	defaultHistorySize   = 100
)

// Service is safe for concurrent use.
type Service struct {
	log    logx.Logger
	sender kit.Sender
	cfg    Config

	limiter *rate.Limiter

	rmu sync.Mutex
	rng *rand.Rand

	hmu     sync.Mutex
	history []HistoryItem
}

// New creates a notifier. sender may be nil (notifications are dropped).
func New(cfg Config, sender kit.Sender, log logx.Logger) *Service {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	} else if cfg.RetryMax == 0 {
		cfg.RetryMax = defaultRetryMax
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = defaultRetryMaxDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:     log,
		sender:  sender,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Service) Enabled() bool { return s.sender != nil && !s.cfg.Target.IsZero() }

// Notify sends text and reports whether it was delivered. Failures are
// logged, never returned.
func (s *Service) Notify(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if !s.Enabled() {
		s.log.Warn("notification dropped", logx.Err(ErrDisabled), logx.String("text", preview(text)))
		s.record(HistoryItem{At: time.Now(), Text: text, Error: ErrDisabled.Error()})
		return false
	}

	maxAttempts := 1 + s.cfg.RetryMax
	var lastErr error
	attempt := 1
	for ; attempt <= maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		_, err := s.sender.SendText(callCtx, s.cfg.Target, text, &kit.SendOptions{DisablePreview: true})
		cancel()
		if err == nil {
			s.record(HistoryItem{At: time.Now(), Delivered: true, Attempts: attempt, Text: text})
			return true
		}
		lastErr = err
		s.log.Debug("notify send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts || !s.sleep(ctx, s.retryDelay(attempt)) {
			break
		}
	}
	attempt = min(attempt, maxAttempts)

	s.log.Error("notification failed",
		logx.Err(lastErr),
		logx.String("chat", s.cfg.Target.String()),
		logx.Int("attempts", attempt),
	)
	s.record(HistoryItem{At: time.Now(), Attempts: attempt, Text: text, Error: errString(lastErr)})
	return false
}

// History returns recent attempts, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) record(it HistoryItem) {
	s.hmu.Lock()
	s.history = append(s.history, it)
	if n := len(s.history) - s.cfg.HistorySize; n > 0 {
		s.history = append(s.history[:0], s.history[n:]...)
	}
	s.hmu.Unlock()
}

func (s *Service) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// retryDelay is base * 2^(attempt-1), capped, with 0.7..1.3 jitter.
func (s *Service) retryDelay(attempt int) time.Duration {
	d := s.cfg.RetryBase
	for i := 1; i < attempt && d < s.cfg.RetryMaxDelay; i++ {
		d *= 2
	}
	s.rmu.Lock()
	j := 0.7 + s.rng.Float64()*0.6
	s.rmu.Unlock()
	d = time.Duration(float64(d) * j)
	return min(d, s.cfg.RetryMaxDelay)
}

func preview(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	if r := []rune(line); len(r) > 80 {
		return string(r[:80]) + "…"
	}
	return line
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
