package guide

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "shipwatch/pkg/logx"
)

func newCarrier(t *testing.T, validate, detail http.HandlerFunc) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/validar/", validate)
	mux.HandleFunc("/detalle/", detail)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(Config{
		ValidateURL: srv.URL + "/validar/{code}",
		DetailURL:   srv.URL + "/detalle/{code}",
		AuthHeader:  "X-Api-Key",
		AuthValue:   "secret",
	}, logx.Nop())
}

func ok(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(body)) }
}

func TestValidateAndResolve(t *testing.T) {
	t.Parallel()
	var gotPath, gotKey string
	c := newCarrier(t,
		func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotKey = r.Header.Get("X-Api-Key")
			_, _ = w.Write([]byte(`{"error":false,"valid":true}`))
		},
		ok(`{"data":{"referencia":"REF-991"}}`),
	)
	ctx := context.Background()

	require.NoError(t, c.Validate(ctx, "ABC-123"))
	assert.Equal(t, "/validar/ABC-123", gotPath)
	assert.Equal(t, "secret", gotKey)

	ref, err := c.Resolve(ctx, "ABC-123")
	require.NoError(t, err)
	assert.Equal(t, "REF-991", ref)
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "status", handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }},
		{name: "error bool", handler: ok(`{"error":true}`)},
		{name: "error message", handler: ok(`{"error":"guia no existe"}`)},
		{name: "success false", handler: ok(`{"success":false}`)},
		{name: "garbage", handler: ok(`<html>`)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newCarrier(t, tt.handler, ok(`{}`))
			assert.ErrorIs(t, c.Validate(context.Background(), "X"), ErrRejected)
		})
	}
}

func TestResolveNumericAndMissingReference(t *testing.T) {
	t.Parallel()
	c := newCarrier(t, ok(`{}`), ok(`{"id":123456}`))
	ref, err := c.Resolve(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, "123456", ref)

	c = newCarrier(t, ok(`{}`), ok(`{"data":{"estado":"EN RUTA"}}`))
	_, err = c.Resolve(context.Background(), "X")
	assert.ErrorIs(t, err, ErrNoReference)
}

func TestUnconfiguredEndpoint(t *testing.T) {
	t.Parallel()
	c := New(Config{}, logx.Nop())
	assert.Error(t, c.Validate(context.Background(), "X"))
}
