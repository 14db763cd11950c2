package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "shipwatch/pkg/logx"
)

func openTestFile(t *testing.T, path string) *fileStore {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	fs, ok := st.(*fileStore)
	require.True(t, ok)
	return fs
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	s := openTestFile(t, filepath.Join(t.TempDir(), "estado.json"))

	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st)
}

func TestFileStoreCorruptFileIsEmpty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "estado.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"loginext::1": 12`), 0o600))
	s := openTestFile(t, path)

	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st)
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "estado.json")
	s := openTestFile(t, path)
	ctx := context.Background()

	want := State{
		Key("loginext", "409460981-1"): {LastEventTS: 1700000000000, LastGuideCode: "ABC-123"},
		Key("loginext", "409048718-1"): {LastEventTS: 42},
	}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file must be renamed away")

	var onDisk map[string]map[string]any
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &onDisk))
	assert.EqualValues(t, 42, onDisk["loginext::409048718-1"]["last_event_ts"])
	assert.NotContains(t, onDisk["loginext::409048718-1"], "last_processed_guide_code")
}

func TestFileStoreLegacyIntegerForm(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "estado.json")
	legacy := `{
  "loginext::409460981-1": 1700000000000,
  "loginext::409048718-1": {"last_event_ts": 5, "last_processed_guide_code": "G-1", "note": "kept"},
  "loginext::dead": null
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))
	s := openTestFile(t, path)
	ctx := context.Background()

	st, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, ShipmentState{LastEventTS: 1700000000000}, st["loginext::409460981-1"])
	assert.Equal(t, ShipmentState{LastEventTS: 5, LastGuideCode: "G-1"}, st["loginext::409048718-1"])
	assert.NotContains(t, st, "loginext::dead")

	// Unknown entry fields survive a save.
	require.NoError(t, s.Save(ctx, st))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"note": "kept"`)
}

func TestFileStoreBadEntryKeepsOthers(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "estado.json")
	mixed := `{
  "loginext::a": 500,
  "loginext::b": {"last_event_ts": 900, "last_processed_guide_code": "ABC-123"},
  "loginext::c": true,
  "loginext::d": {"last_event_ts": "soon"}
}`
	require.NoError(t, os.WriteFile(path, []byte(mixed), 0o600))
	s := openTestFile(t, path)
	ctx := context.Background()

	st, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, State{
		"loginext::a": {LastEventTS: 500},
		"loginext::b": {LastEventTS: 900, LastGuideCode: "ABC-123"},
	}, st)

	// Unreadable entries are written back untouched.
	require.NoError(t, s.Save(ctx, st))
	var onDisk map[string]json.RawMessage
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &onDisk))
	assert.JSONEq(t, `true`, string(onDisk["loginext::c"]))
	assert.JSONEq(t, `{"last_event_ts": "soon"}`, string(onDisk["loginext::d"]))

	// A new state for the shipment replaces the unreadable entry.
	st["loginext::c"] = ShipmentState{LastEventTS: 77}
	require.NoError(t, s.Save(ctx, st))
	got, err := openTestFile(t, path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(77), got["loginext::c"].LastEventTS)
	assert.Equal(t, "ABC-123", got["loginext::b"].LastGuideCode)
	assert.NotContains(t, got, "loginext::d")
}

func TestFileStoreCrashBeforeReplaceKeepsCommittedState(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "estado.json")
	s := openTestFile(t, path)
	ctx := context.Background()

	committed := State{Key("loginext", "a"): {LastEventTS: 100}}
	require.NoError(t, s.Save(ctx, committed))

	// Simulate a kill after the temporary write but before the rename.
	next, err := encodeStateFile(State{Key("loginext", "a"): {LastEventTS: 200}}, fileExtras{})
	require.NoError(t, err)
	_, err = s.writeTemp(next[:len(next)/2])
	require.NoError(t, err)

	// A fresh process only sees the canonical file.
	restarted := openTestFile(t, path)
	got, err := restarted.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, committed, got)

	// The next successful save overwrites the stale temporary file.
	require.NoError(t, restarted.Save(ctx, State{Key("loginext", "a"): {LastEventTS: 300}}))
	got, err = restarted.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got[Key("loginext", "a")].LastEventTS)
}

func TestShipmentStateAdvanceIsMonotonic(t *testing.T) {
	t.Parallel()
	var s ShipmentState
	for _, ts := range []int64{5, 3, 9, 9, 1, 12, 0} {
		prev := s.LastEventTS
		s.Advance(ts)
		assert.GreaterOrEqual(t, s.LastEventTS, prev)
	}
	assert.Equal(t, int64(12), s.LastEventTS)
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
