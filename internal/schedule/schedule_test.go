package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "shipwatch/pkg/logx"
)

func TestParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		raw    string
		kind   Kind
		source string
		every  time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: KindCron, source: "cron"},
		{name: "descriptor", raw: "@every 3m", kind: KindCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 8 * * 1-5", kind: KindCron, source: "cron"},
		{name: "duration", raw: "3m", kind: KindInterval, source: "duration", every: 3 * time.Minute},
		{name: "prefixed interval", raw: "every:45s", kind: KindInterval, source: "duration", every: 45 * time.Second},
		{name: "hhmm", raw: "01:30", kind: KindInterval, source: "hhmm", every: 90 * time.Minute},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.source, got.Source)
			if tt.kind == KindInterval {
				assert.Equal(t, tt.every, got.Every)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "soon", "0s", "-1m", "00:00", "01:75", "61 * * * *", "cron:"} {
		_, err := Parse(raw)
		assert.Error(t, err, raw)
	}
	_, err := Every(0)
	assert.Error(t, err)
}

func TestRunnerIntervalRunsImmediatelyThenSleeps(t *testing.T) {
	t.Parallel()
	spec, err := Every(1)
	require.NoError(t, err)
	spec.Every = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var n atomic.Int32
	var stamps []time.Time
	r := NewRunner(spec, nil, func(context.Context) error {
		stamps = append(stamps, time.Now())
		if n.Add(1) == 3 {
			cancel()
		}
		time.Sleep(10 * time.Millisecond)
		return nil
	}, logx.Nop())

	require.NoError(t, r.Run(ctx))
	assert.Equal(t, int32(3), n.Load())
	require.Len(t, stamps, 3)
	// The interval is measured from the end of the previous cycle.
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 30*time.Millisecond)
}

func TestRunnerStopsOnCycleError(t *testing.T) {
	t.Parallel()
	boom := errors.New("state save failed")
	spec := Spec{Kind: KindInterval, Every: time.Millisecond}
	var n atomic.Int32
	r := NewRunner(spec, nil, func(context.Context) error {
		if n.Add(1) == 2 {
			return boom
		}
		return nil
	}, logx.Nop())

	err := r.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), n.Load())
}

func TestRunnerCycleErrorDuringShutdown(t *testing.T) {
	t.Parallel()
	saveErr := fmt.Errorf("save state: %w", errors.New("disk full"))
	tests := []struct {
		name    string
		cronish bool
		err     error
		wantErr error
	}{
		{name: "interval save error", err: saveErr, wantErr: saveErr},
		{name: "interval cancellation", err: fmt.Errorf("fetch: %w", context.Canceled)},
		{name: "save timeout", err: fmt.Errorf("save state: %w", context.DeadlineExceeded), wantErr: context.DeadlineExceeded},
		{name: "cron save error", cronish: true, err: saveErr, wantErr: saveErr},
		{name: "cron cancellation", cronish: true, err: context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spec := Spec{Kind: KindInterval, Every: time.Hour}
			if tt.cronish {
				var err error
				spec, err = Parse("0 0 1 1 *")
				require.NoError(t, err)
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			r := NewRunner(spec, time.UTC, func(context.Context) error {
				cancel()
				return tt.err
			}, logx.Nop())

			err := r.Run(ctx)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			assert.ErrorContains(t, err, "save state")
		})
	}
}

func TestRunnerCronStopsOnCycleError(t *testing.T) {
	t.Parallel()
	spec, err := Parse("@every 1s")
	require.NoError(t, err)

	boom := errors.New("boom")
	var n atomic.Int32
	r := NewRunner(spec, time.UTC, func(context.Context) error {
		if n.Add(1) >= 2 {
			return boom
		}
		return nil
	}, logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	assert.ErrorIs(t, r.Run(ctx), boom)
}

func TestRunnerCronStopsOnCancel(t *testing.T) {
	t.Parallel()
	spec, err := Parse("0 0 1 1 *")
	require.NoError(t, err)
	var n atomic.Int32
	r := NewRunner(spec, time.UTC, func(context.Context) error {
		n.Add(1)
		return nil
	}, logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, r.Run(ctx))
	assert.Equal(t, int32(1), n.Load())
}
