package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "shipwatch/internal/transport"
	logx "shipwatch/pkg/logx"
)

func TestSplitText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{name: "short", in: "hola", limit: 10, want: []string{"hola"}},
		{name: "hard cut", in: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "newline preferred", in: "aaaa\nbbbbbb", limit: 8, want: []string{"aaaa", "bbbbbb"}},
		{name: "runes", in: "ñññññ", limit: 2, want: []string{"ññ", "ññ", "ñ"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, splitText(tt.in, tt.limit))
		})
	}
}

type fakeBotAPI struct {
	mu    sync.Mutex
	calls []map[string]any
	paths []string
}

func (f *fakeBotAPI) handler(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.calls = append(f.calls, body)
	f.paths = append(f.paths, r.URL.Path)
	n := len(f.calls)
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":-100123,"type":"supergroup"}}}`, 40+n)
}

func TestSenderSendText(t *testing.T) {
	t.Parallel()
	api := &fakeBotAPI{}
	srv := httptest.NewServer(http.HandlerFunc(api.handler))
	t.Cleanup(srv.Close)

	s, err := New(Config{Token: "123:abc", APIURL: srv.URL}, logx.Nop())
	require.NoError(t, err)

	to, err := kit.ParseChatTarget("-100123", 0)
	require.NoError(t, err)
	ref, err := s.SendText(context.Background(), to, "📦 Actualización\nOrden: A-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-100123), ref.ChatID)
	assert.Equal(t, 41, ref.MessageID)

	require.Len(t, api.calls, 1)
	assert.True(t, strings.HasSuffix(api.paths[0], "/bot123:abc/sendMessage"), api.paths[0])
	assert.Equal(t, "-100123", fmt.Sprint(api.calls[0]["chat_id"]))
	assert.Equal(t, "📦 Actualización\nOrden: A-1", api.calls[0]["text"])
}

func TestSenderRejectsEmptyTarget(t *testing.T) {
	t.Parallel()
	s, err := New(Config{Token: "123:abc", APIURL: "http://127.0.0.1:1"}, logx.Nop())
	require.NoError(t, err)
	_, err = s.SendText(context.Background(), kit.ChatTarget{}, "x", nil)
	assert.Error(t, err)

	_, err = New(Config{}, logx.Nop())
	assert.Error(t, err)
}

func TestParseChatTarget(t *testing.T) {
	t.Parallel()
	to, err := kit.ParseChatTarget(" @mis_envios ", 7)
	require.NoError(t, err)
	assert.Equal(t, "@mis_envios", to.Username)
	assert.Equal(t, 7, to.ThreadID)

	for _, bad := range []string{"", "@", "abc", "0"} {
		_, err := kit.ParseChatTarget(bad, 0)
		assert.Error(t, err, bad)
	}
}
