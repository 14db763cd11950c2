package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	logx "shipwatch/pkg/logx"
)

// CycleFunc runs one cycle. A non-nil error stops the runner.
type CycleFunc func(ctx context.Context) error

type Runner struct {
	spec  Spec
	loc   *time.Location
	log   logx.Logger
	cycle CycleFunc
}

// NewRunner creates a runner. loc applies to cron expressions (nil = Local).
func NewRunner(spec Spec, loc *time.Location, cycle CycleFunc, log logx.Logger) *Runner {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{spec: spec, loc: loc, log: log, cycle: cycle}
}

// Run executes one cycle immediately, then follows the trigger until ctx is
// done (returns nil) or a cycle fails (returns its error). Cycles never
// overlap.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("scheduler started", logx.String("trigger", r.spec.String()))
	if err := r.runOnce(ctx); err != nil {
		return err
	}
	if r.spec.Kind == KindCron {
		return r.runCron(ctx)
	}
	return r.runInterval(ctx)
}

func (r *Runner) runOnce(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	if err := r.cycle(ctx); err != nil {
		// Only the cancellation itself is swallowed. A save that fails while
		// shutting down is still an error.
		if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
			return nil
		}
		return fmt.Errorf("cycle failed: %w", err)
	}
	return nil
}

// runInterval sleeps a full interval after each cycle completes.
func (r *Runner) runInterval(ctx context.Context) error {
	t := time.NewTimer(r.spec.Every)
	defer t.Stop()
	for {
		r.log.Debug("sleeping", logx.Duration("interval", r.spec.Every))
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		if err := r.runOnce(ctx); err != nil {
			return err
		}
		t.Reset(r.spec.Every)
	}
}

func (r *Runner) runCron(ctx context.Context) error {
	clog := cronLogger{log: r.log}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(r.loc),
		cron.WithLogger(clog),
		cron.WithChain(cron.SkipIfStillRunning(clog)),
	)
	errCh := make(chan error, 1)
	if _, err := c.AddFunc(r.spec.Cron, func() {
		if err := r.runOnce(ctx); err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", r.spec.Cron, err)
	}

	c.Start()
	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	// Wait for a running cycle to finish.
	<-c.Stop().Done()
	if err == nil {
		select {
		case err = <-errCh:
		default:
		}
	}
	return err
}

// cronLogger routes robfig/cron's logr-style calls into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
