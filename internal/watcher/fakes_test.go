package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"shipwatch/internal/storage"
	"shipwatch/internal/tracking"
)

// fakeFetcher answers from per-shipment scripts; the last step repeats.
type fakeFetcher struct {
	mu    sync.Mutex
	steps map[string][]func() (*tracking.Response, error)
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{steps: map[string][]func() (*tracking.Response, error){}, calls: map[string]int{}}
}

func (f *fakeFetcher) Name() string { return "loginext" }

func (f *fakeFetcher) script(id string, steps ...func() (*tracking.Response, error)) *fakeFetcher {
	f.steps[id] = steps
	return f
}

func (f *fakeFetcher) Fetch(ctx context.Context, id string) (*tracking.Response, error) {
	f.mu.Lock()
	steps := f.steps[id]
	n := f.calls[id]
	f.calls[id]++
	f.mu.Unlock()
	if len(steps) == 0 {
		return nil, fmt.Errorf("no script for %s", id)
	}
	return steps[min(n, len(steps)-1)]()
}

func ok(data string) func() (*tracking.Response, error) {
	return func() (*tracking.Response, error) {
		return &tracking.Response{Data: json.RawMessage(data)}, nil
	}
}

func fail(msg string) func() (*tracking.Response, error) {
	return func() (*tracking.Response, error) { return nil, errors.New(msg) }
}

func timeline(orderNo string, ts int64, extra string) string {
	node := fmt.Sprintf(`{"eventDt":%d,"trackingEvent":"ARRIVED","nodeName":"Hub SPS"%s}`, ts, extra)
	return fmt.Sprintf(`{"orderNo":%q,"orderStatus":"INTRANSIT","timeline":{"arrived":%s}}`, orderNo, node)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	down bool
}

func (n *fakeNotifier) Notify(ctx context.Context, text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.down {
		return false
	}
	n.sent = append(n.sent, text)
	return true
}

func (n *fakeNotifier) count(prefix string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if strings.HasPrefix(s, prefix) {
			c++
		}
	}
	return c
}

type fakeGuides struct {
	mu          sync.Mutex
	validateErr []error // consumed per call; last repeats
	ref         string
	validated   int
	resolved    int
}

func (g *fakeGuides) Validate(ctx context.Context, code string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.validated++
	if len(g.validateErr) == 0 {
		return nil
	}
	err := g.validateErr[0]
	if len(g.validateErr) > 1 {
		g.validateErr = g.validateErr[1:]
	}
	return err
}

func (g *fakeGuides) Resolve(ctx context.Context, code string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resolved++
	if g.ref == "" {
		return "", errors.New("no reference")
	}
	return g.ref, nil
}

// memStore is an in-memory storage.Store; saveErrs are returned by
// successive Save calls (nil entries succeed).
type memStore struct {
	mu       sync.Mutex
	state    storage.State
	saveErrs []error
	saves    int
}

func (m *memStore) Load(ctx context.Context) (storage.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.state), nil
}

func (m *memStore) Save(ctx context.Context, st storage.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saveErrs) > 0 {
		err := m.saveErrs[0]
		m.saveErrs = m.saveErrs[1:]
		if err != nil {
			return err
		}
	}
	m.saves++
	m.state = maps.Clone(st)
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) get(key string) storage.ShipmentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state[key]
}
