// Package sqlite is the default, file-backed store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hamed0406/pingkeeper/internal/domain"
	"github.com/hamed0406/pingkeeper/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Fixed-width so that lexical order in SQL matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements repo.Store on a SQLite file. database/sql hands each call
// its own pooled connection.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens (creating if needed) the database file and runs migrations.
func New(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, repo.Wrap("open", fmt.Errorf("unable to open sqlite database: %w", err))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, repo.Wrap("open", fmt.Errorf("unable to ping database: %w", err))
	}
	s := &Store{db: db, log: log}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, repo.Wrap("migrate", err)
	}
	log.Info("sqlite_ready", zap.String("path", path))
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS monitor_targets (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	url  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ping_records (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	target_name TEXT NOT NULL,
	url         TEXT NOT NULL,
	status_code INTEGER,
	checked_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ping_records_url ON ping_records (url);
CREATE INDEX IF NOT EXISTS idx_ping_records_checked_at ON ping_records (checked_at, id);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// ---- TargetStore ----

func (s *Store) ListTargets(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, url FROM monitor_targets ORDER BY id`)
	if err != nil {
		return nil, repo.Wrap("list targets", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		var t domain.Target
		if err := rows.Scan(&t.ID, &t.Name, &t.URL); err != nil {
			return nil, repo.Wrap("scan target", err)
		}
		out = append(out, t)
	}
	return out, repo.Wrap("list targets", rows.Err())
}

func (s *Store) GetTargetByName(ctx context.Context, name string) (*domain.Target, error) {
	return s.getTarget(ctx, `SELECT id, name, url FROM monitor_targets WHERE name = ?`, name)
}

func (s *Store) GetTargetByID(ctx context.Context, id int64) (*domain.Target, error) {
	return s.getTarget(ctx, `SELECT id, name, url FROM monitor_targets WHERE id = ?`, id)
}

func (s *Store) getTarget(ctx context.Context, q string, key any) (*domain.Target, error) {
	var t domain.Target
	err := s.db.QueryRowContext(ctx, q, key).Scan(&t.ID, &t.Name, &t.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.NotFound("target", key)
	}
	if err != nil {
		return nil, repo.Wrap("get target", err)
	}
	return &t, nil
}

func (s *Store) AddTarget(ctx context.Context, t *domain.Target) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO monitor_targets (name, url) VALUES (?, ?)`, t.Name, t.URL)
	if err != nil {
		var se *msqlite.Error
		if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return repo.ErrDuplicateName
		}
		return repo.Wrap("insert target", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return repo.Wrap("insert target", err)
	}
	t.ID = id
	return nil
}

func (s *Store) UpdateTargetURL(ctx context.Context, id int64, newURL string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE monitor_targets SET url = ? WHERE id = ?`, newURL, id)
	if err != nil {
		return repo.Wrap("update target url", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repo.NotFound("target id", id)
	}
	return nil
}

func (s *Store) DeleteTarget(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM monitor_targets WHERE id = ?`, id)
	if err != nil {
		return repo.Wrap("delete target", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repo.NotFound("target id", id)
	}
	return nil
}

// ---- PingStore ----

func (s *Store) AppendPing(ctx context.Context, p *domain.PingRecord) (int64, error) {
	if p.CheckedAt.IsZero() {
		p.CheckedAt = time.Now().UTC()
	}
	var status sql.NullInt64
	if p.StatusCode != nil {
		status = sql.NullInt64{Int64: int64(*p.StatusCode), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ping_records (target_name, url, status_code, checked_at) VALUES (?, ?, ?, ?)`,
		p.TargetName, p.URL, status, p.CheckedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, repo.Wrap("insert ping", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, repo.Wrap("insert ping", err)
	}
	p.ID = id
	return id, nil
}

func (s *Store) ListPings(ctx context.Context, filterURL string) ([]domain.PingRecord, error) {
	q := `SELECT id, target_name, url, status_code, checked_at FROM ping_records`
	var args []any
	if filterURL != "" {
		q += ` WHERE url = ?`
		args = append(args, filterURL)
	}
	q += ` ORDER BY checked_at, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, repo.Wrap("list pings", err)
	}
	defer rows.Close()

	var out []domain.PingRecord
	for rows.Next() {
		var (
			p         domain.PingRecord
			status    sql.NullInt64
			checkedAt string
		)
		if err := rows.Scan(&p.ID, &p.TargetName, &p.URL, &status, &checkedAt); err != nil {
			return nil, repo.Wrap("scan ping", err)
		}
		if status.Valid {
			p.StatusCode = domain.IntPtr(int(status.Int64))
		}
		if p.CheckedAt, err = time.Parse(timeLayout, checkedAt); err != nil {
			return nil, repo.Wrap("parse checked_at", err)
		}
		out = append(out, p)
	}
	return out, repo.Wrap("list pings", rows.Err())
}

func (s *Store) BulkRewriteURL(ctx context.Context, oldURL, newURL string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE ping_records SET url = ? WHERE url = ?`, newURL, oldURL)
	if err != nil {
		return 0, repo.Wrap("rewrite ping url", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
