package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "shipwatch/pkg/logx"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)

	st, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, st)

	want := State{
		Key("loginext", "1"): {LastEventTS: 10, LastGuideCode: "ABC-123"},
		Key("loginext", "2"): {LastEventTS: 20},
	}
	require.NoError(t, s.Save(ctx, want))
	require.NoError(t, s.Save(ctx, State{Key("loginext", "2"): {LastEventTS: 25}}))
	require.NoError(t, s.Close())

	reopened, err := Open(Config{Driver: "sqlite3", Path: path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, State{
		Key("loginext", "1"): {LastEventTS: 10, LastGuideCode: "ABC-123"},
		Key("loginext", "2"): {LastEventTS: 25},
	}, got)
}

func TestSQLiteRequiresPath(t *testing.T) {
	t.Parallel()
	_, err := Open(Config{Driver: "sqlite"}, logx.Nop())
	assert.Error(t, err)
}
