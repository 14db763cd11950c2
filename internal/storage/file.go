package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	logx "shipwatch/pkg/logx"
)

// fileStore keeps the whole state in one JSON object:
//
//	{
//	  "loginext::409460981-1": {"last_event_ts": 1700000000000, "last_processed_guide_code": "ABC-123"},
//	  "loginext::409048718-1": 1699999999000
//	}
//
// Bare integers are the legacy single-value form and are accepted on load.
// Save always writes the object form.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
	// extras keeps data from the last load that State cannot represent so a
	// save does not drop it.
	extras fileExtras
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "estado.json"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fileStore) Load(ctx context.Context) (State, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("state read failed; starting empty", logx.String("path", s.path), logx.Err(err))
		}
		s.extras = fileExtras{}
		return State{}, nil
	}
	st, extras, err := decodeStateFile(b)
	if err != nil {
		s.log.Warn("state decode failed; starting empty", logx.String("path", s.path), logx.Err(err))
		s.extras = fileExtras{}
		return State{}, nil
	}
	for k, e := range extras.bad {
		s.log.Warn("state entry unreadable; kept as is", logx.String("path", s.path), logx.String("key", k), logx.Err(e.err))
	}
	s.extras = extras
	return st, nil
}

func (s *fileStore) Save(ctx context.Context, st State) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	b, err := encodeStateFile(st, s.extras)
	if err != nil {
		return err
	}
	tmp, err := s.writeTemp(b)
	if err != nil {
		return err
	}
	return s.commit(tmp)
}

// writeTemp writes the next state next to the canonical file and syncs it.
// The canonical file is untouched until commit.
func (s *fileStore) writeTemp(b []byte) (string, error) {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return tmp, nil
}

// commit atomically replaces the canonical file with tmp.
func (s *fileStore) commit(tmp string) error {
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	// Best-effort: persist the rename itself.
	if d, err := os.Open(filepath.Dir(s.path)); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// fileExtras is what a load keeps beside State.
type fileExtras struct {
	// fields are unknown per-entry fields written by other tools.
	fields map[string]map[string]json.RawMessage
	// bad are entries that could not be decoded. They are written back
	// verbatim until the shipment gets a new state.
	bad map[string]badEntry
}

type badEntry struct {
	raw json.RawMessage
	err error
}

// decodeStateFile fails only when the file is not a JSON object. A single
// undecodable entry is moved to extras.bad and the others still load.
func decodeStateFile(b []byte) (State, fileExtras, error) {
	var extras fileExtras
	if len(bytes.TrimSpace(b)) == 0 {
		return State{}, extras, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, extras, err
	}
	st := make(State, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		if len(v) == 0 || string(v) == "null" {
			continue
		}
		e, fields, err := decodeEntry(v)
		if err != nil {
			if extras.bad == nil {
				extras.bad = map[string]badEntry{}
			}
			extras.bad[k] = badEntry{raw: v, err: err}
			continue
		}
		st[k] = e
		if len(fields) > 0 {
			if extras.fields == nil {
				extras.fields = map[string]map[string]json.RawMessage{}
			}
			extras.fields[k] = fields
		}
	}
	return st, extras, nil
}

// decodeEntry accepts the object form or a legacy bare timestamp. It returns
// the unknown object fields.
func decodeEntry(v json.RawMessage) (ShipmentState, map[string]json.RawMessage, error) {
	if v[0] != '{' {
		ts, err := legacyTimestamp(v)
		if err != nil {
			return ShipmentState{}, nil, err
		}
		return ShipmentState{LastEventTS: ts}, nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(v, &fields); err != nil {
		return ShipmentState{}, nil, err
	}
	var e ShipmentState
	if ts, ok := fields["last_event_ts"]; ok {
		n, err := legacyTimestamp(ts)
		if err != nil {
			return ShipmentState{}, nil, fmt.Errorf("last_event_ts: %w", err)
		}
		e.LastEventTS = n
	}
	if g, ok := fields["last_processed_guide_code"]; ok {
		_ = json.Unmarshal(g, &e.LastGuideCode)
	}
	delete(fields, "last_event_ts")
	delete(fields, "last_processed_guide_code")
	return e, fields, nil
}

func encodeStateFile(st State, extras fileExtras) ([]byte, error) {
	out := make(map[string]any, len(st)+len(extras.bad))
	for k, e := range extras.bad {
		if _, ok := st[k]; !ok {
			out[k] = e.raw
		}
	}
	for k, v := range st {
		m := map[string]any{}
		for ek, ev := range extras.fields[k] {
			m[ek] = ev
		}
		m["last_event_ts"] = v.LastEventTS
		if v.LastGuideCode != "" {
			m["last_processed_guide_code"] = v.LastGuideCode
		}
		out[k] = m
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func legacyTimestamp(v json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(v))
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(s)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %s", v)
	}
	return int64(f), nil
}
