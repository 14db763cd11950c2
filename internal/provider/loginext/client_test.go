package loginext

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "shipwatch/pkg/logx"
)

type recorded struct {
	mu     sync.Mutex
	bodies []map[string]string
	auth   []string
}

func (r *recorded) add(b map[string]string, auth string) {
	r.mu.Lock()
	r.bodies = append(r.bodies, b)
	r.auth = append(r.auth, auth)
	r.mu.Unlock()
}

func TestFetchSendsPrimaryPayload(t *testing.T) {
	t.Parallel()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var b map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&b))
		rec.add(b, r.Header.Get("www-authenticate"))
		_, _ = w.Write([]byte(`{"data":{"orderNo":"A-1","timeline":{"x":{"eventDt":1}}}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(Config{URL: srv.URL}, logx.Nop())
	resp, err := c.Fetch(context.Background(), "A-1")
	require.NoError(t, err)
	assert.True(t, resp.HasData())

	require.Len(t, rec.bodies, 1)
	assert.Equal(t, map[string]string{"userType": "DELIVERCUSTOMER", "orderNo": "A-1"}, rec.bodies[0])
	assert.Equal(t, DefaultAuth, rec.auth[0])
}

func TestFetchTriesAlternateIDFields(t *testing.T) {
	t.Parallel()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b map[string]string
		_ = json.NewDecoder(r.Body).Decode(&b)
		rec.add(b, r.Header.Get("www-authenticate"))
		switch {
		case b["orderNo"] != "":
			_, _ = w.Write([]byte(`{"data":null}`))
		case b["orderRefId"] != "":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"data":{"orderNo":"77"}}`))
		}
	}))
	t.Cleanup(srv.Close)

	c := New(Config{URL: srv.URL, Auth: "BASIC custom"}, logx.Nop())
	resp, err := c.Fetch(context.Background(), "77")
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderNo":"77"}`, string(resp.Data))

	require.Len(t, rec.bodies, 3)
	assert.Contains(t, rec.bodies[0], "orderNo")
	assert.Contains(t, rec.bodies[1], "orderRefId")
	assert.Contains(t, rec.bodies[2], "orderId")
	assert.Equal(t, "BASIC custom", rec.auth[2])
}

func TestFetchWithoutDataIsNotAFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":404,"message":"not found"}`))
	}))
	t.Cleanup(srv.Close)

	resp, err := New(Config{URL: srv.URL}, logx.Nop()).Fetch(context.Background(), "X")
	require.NoError(t, err)
	assert.False(t, resp.HasData())
}

func TestFetchFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "status", handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) }},
		{name: "malformed", handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"data":`)) }},
		{name: "not object", handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`[1,2]`)) }},
		{name: "timeout", handler: func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			t.Cleanup(srv.Close)

			c := New(Config{URL: srv.URL, IDFields: []string{"orderNo"}, Timeout: 100 * time.Millisecond}, logx.Nop())
			resp, err := c.Fetch(context.Background(), "X")
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, ErrFetch)
		})
	}
}
