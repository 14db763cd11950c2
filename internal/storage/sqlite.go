package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "shipwatch/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = FULL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) (State, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, last_event_ts, last_guide_code FROM shipment_state`)
	if err != nil {
		s.log.Warn("state query failed; starting empty", logx.Err(err))
		return State{}, nil
	}
	defer rows.Close()

	st := State{}
	for rows.Next() {
		var (
			key   string
			ts    int64
			guide sql.NullString
		)
		if err := rows.Scan(&key, &ts, &guide); err != nil {
			s.log.Warn("state row unreadable; skipped", logx.Err(err))
			continue
		}
		st[key] = ShipmentState{LastEventTS: ts, LastGuideCode: guide.String}
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("state scan failed; starting empty", logx.Err(err))
		return State{}, nil
	}
	return st, nil
}

// Save upserts every entry in one transaction. Rows absent from st are kept:
// orphaned shipments are harmless and never deleted automatically.
func (s *sqliteStore) Save(ctx context.Context, st State) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO shipment_state(key, last_event_ts, last_guide_code, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(key) DO UPDATE SET
		   last_event_ts = excluded.last_event_ts,
		   last_guide_code = excluded.last_guide_code,
		   updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for key, v := range st {
		if _, err := stmt.ExecContext(ctx, key, v.LastEventTS, nullStr(v.LastGuideCode), now); err != nil {
			return fmt.Errorf("upsert %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
