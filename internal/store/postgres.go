package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/seriarr/seriarr/internal/data"
)

// PostgresStore implements Store backed by PostgreSQL. Unit payloads live in
// `units`, states in `download_states` keyed by item id; the failed list is
// stored as JSONB so its identity round-trips exactly.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore constructs a store using the provided DSN.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreFromEnv constructs a DSN from component env vars.
// Recognized envs (with defaults): POSTGRES_HOST (postgres), POSTGRES_PORT
// (5432), POSTGRES_DB (seriarr), POSTGRES_USER (seriarr), POSTGRES_PASSWORD
// (empty), POSTGRES_SSLMODE (disable).
func NewPostgresStoreFromEnv() (*PostgresStore, error) {
	host := getenv("POSTGRES_HOST", "postgres")
	port := getenv("POSTGRES_PORT", "5432")
	db := getenv("POSTGRES_DB", "seriarr")
	user := getenv("POSTGRES_USER", "seriarr")
	pass := getenv("POSTGRES_PASSWORD", "")
	ssl := getenv("POSTGRES_SSLMODE", "disable")

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + db,
	}
	q := url.Values{}
	q.Set("sslmode", ssl)
	u.RawQuery = q.Encode()
	return NewPostgresStore(u.String())
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS units (
    item_id TEXT NOT NULL,
    number INTEGER NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    content BYTEA NOT NULL,
    saved_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (item_id, number)
);
CREATE TABLE IF NOT EXISTS download_states (
    item_id TEXT PRIMARY KEY,
    downloaded JSONB NOT NULL DEFAULT '[]',
    last_unit INTEGER NOT NULL DEFAULT 0,
    next_ref TEXT NOT NULL DEFAULT '',
    failed JSONB NOT NULL DEFAULT '[]',
    total_bytes BIGINT NOT NULL DEFAULT 0,
    total_words INTEGER NOT NULL DEFAULT 0,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMPTZ NOT NULL
);
`)
	return err
}

func (s *PostgresStore) SaveUnit(ctx context.Context, itemID string, number int, title string, content []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO units (item_id, number, title, content, saved_at)
VALUES ($1,$2,$3,$4,now())
ON CONFLICT (item_id, number) DO UPDATE SET title=EXCLUDED.title, content=EXCLUDED.content, saved_at=now()
`, itemID, number, title, content)
	if err != nil {
		return fmt.Errorf("save unit: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDownloadedNumbers(ctx context.Context, itemID string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT number FROM units WHERE item_id=$1 ORDER BY number ASC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LoadState(ctx context.Context, itemID string) (*data.DownloadState, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT item_id, downloaded, last_unit, next_ref, failed, total_bytes, total_words, completed, updated_at
FROM download_states WHERE item_id=$1`, itemID)

	var (
		state         data.DownloadState
		downloadedRaw []byte
		failedRaw     []byte
	)
	err := row.Scan(&state.ItemID, &downloadedRaw, &state.LastUnit, &state.NextRef,
		&failedRaw, &state.TotalBytes, &state.TotalWords, &state.Completed, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, data.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(downloadedRaw, &state.Downloaded); err != nil {
		return nil, fmt.Errorf("load state %s: %w", itemID, err)
	}
	if err := json.Unmarshal(failedRaw, &state.Failed); err != nil {
		return nil, fmt.Errorf("load state %s: %w", itemID, err)
	}
	return &state, nil
}

func (s *PostgresStore) SaveState(ctx context.Context, state *data.DownloadState) error {
	if state == nil || state.ItemID == "" {
		return errors.New("save state: missing item id")
	}
	downloadedRaw, err := json.Marshal(state.Downloaded)
	if err != nil {
		return err
	}
	if state.Downloaded == nil {
		downloadedRaw = []byte(`[]`)
	}
	failedRaw, err := json.Marshal(state.Failed)
	if err != nil {
		return err
	}
	if state.Failed == nil {
		failedRaw = []byte(`[]`)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO download_states (item_id, downloaded, last_unit, next_ref, failed, total_bytes, total_words, completed, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
ON CONFLICT (item_id) DO UPDATE SET
    downloaded=EXCLUDED.downloaded, last_unit=EXCLUDED.last_unit, next_ref=EXCLUDED.next_ref,
    failed=EXCLUDED.failed, total_bytes=EXCLUDED.total_bytes, total_words=EXCLUDED.total_words,
    completed=EXCLUDED.completed, updated_at=now()
`, state.ItemID, downloadedRaw, state.LastUnit, state.NextRef, failedRaw,
		state.TotalBytes, state.TotalWords, state.Completed)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
