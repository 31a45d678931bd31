package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/pingkeeper/internal/domain"
	"github.com/hamed0406/pingkeeper/internal/repo"
)

var _ repo.Store = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS monitor_targets (
  id   BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  url  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ping_records (
  id          BIGSERIAL PRIMARY KEY,
  target_name TEXT NOT NULL,
  url         TEXT NOT NULL,
  status_code INTEGER NULL,
  checked_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ping_records_url ON ping_records (url);
CREATE INDEX IF NOT EXISTS idx_ping_records_checked_at ON ping_records (checked_at);
`

const uniqueViolation = "23505"

// Store talks to Postgres through a pool; every call checks out its own
// connection and hands it back when the call returns.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, repo.Wrap("open", fmt.Errorf("pgxpool.New: %w", err))
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, repo.Wrap("open", fmt.Errorf("ping: %w", err))
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, repo.Wrap("migrate", err)
	}
	log.Info("postgres_ready")
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ---- TargetStore ----

func (s *Store) ListTargets(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, url FROM monitor_targets ORDER BY id`)
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
	return s.getTarget(ctx, `SELECT id, name, url FROM monitor_targets WHERE name = $1`, name)
}

func (s *Store) GetTargetByID(ctx context.Context, id int64) (*domain.Target, error) {
	return s.getTarget(ctx, `SELECT id, name, url FROM monitor_targets WHERE id = $1`, id)
}

func (s *Store) getTarget(ctx context.Context, q string, key any) (*domain.Target, error) {
	var t domain.Target
	err := s.pool.QueryRow(ctx, q, key).Scan(&t.ID, &t.Name, &t.URL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.NotFound("target", key)
	}
	if err != nil {
		return nil, repo.Wrap("get target", err)
	}
	return &t, nil
}

func (s *Store) AddTarget(ctx context.Context, t *domain.Target) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO monitor_targets (name, url) VALUES ($1, $2) RETURNING id`,
		t.Name, t.URL,
	).Scan(&t.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repo.ErrDuplicateName
	}
	return repo.Wrap("insert target", err)
}

func (s *Store) UpdateTargetURL(ctx context.Context, id int64, newURL string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE monitor_targets SET url = $1 WHERE id = $2`, newURL, id)
	if err != nil {
		return repo.Wrap("update target url", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.NotFound("target id", id)
	}
	return nil
}

func (s *Store) DeleteTarget(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM monitor_targets WHERE id = $1`, id)
	if err != nil {
		return repo.Wrap("delete target", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.NotFound("target id", id)
	}
	return nil
}

// ---- PingStore ----

func (s *Store) AppendPing(ctx context.Context, p *domain.PingRecord) (int64, error) {
	if p.CheckedAt.IsZero() {
		p.CheckedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ping_records (target_name, url, status_code, checked_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		p.TargetName, p.URL, p.StatusCode, p.CheckedAt,
	).Scan(&p.ID)
	if err != nil {
		return 0, repo.Wrap("insert ping", err)
	}
	return p.ID, nil
}

func (s *Store) ListPings(ctx context.Context, filterURL string) ([]domain.PingRecord, error) {
	q := `SELECT id, target_name, url, status_code, checked_at FROM ping_records`
	var args []any
	if filterURL != "" {
		q += ` WHERE url = $1`
		args = append(args, filterURL)
	}
	q += ` ORDER BY checked_at, id`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, repo.Wrap("list pings", err)
	}
	defer rows.Close()

	var out []domain.PingRecord
	for rows.Next() {
		var (
			p      domain.PingRecord
			status sql.NullInt32
		)
		if err := rows.Scan(&p.ID, &p.TargetName, &p.URL, &status, &p.CheckedAt); err != nil {
			return nil, repo.Wrap("scan ping", err)
		}
		if status.Valid {
			p.StatusCode = domain.IntPtr(int(status.Int32))
		}
		out = append(out, p)
	}
	return out, repo.Wrap("list pings", rows.Err())
}

func (s *Store) BulkRewriteURL(ctx context.Context, oldURL, newURL string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE ping_records SET url = $1 WHERE url = $2`, newURL, oldURL)
	if err != nil {
		return 0, repo.Wrap("rewrite ping url", err)
	}
	return tag.RowsAffected(), nil
}
