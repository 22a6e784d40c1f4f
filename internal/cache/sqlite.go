package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/rename-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Each Put is a
// single-row upsert.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, path: dsn}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS company_records (
	key        TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	status     TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_company_records_status ON company_records(status);
`

// Migrate creates the records table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*model.CompanyRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM company_records WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %q", key)
	}
	rec, ok := decodeRecord(s.path, key, []byte(data))
	if !ok {
		return nil, nil
	}
	return rec, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, rec model.CompanyRecord) error {
	if err := rec.Validate(); err != nil {
		return eris.Wrapf(err, "sqlite: put %q", key)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO company_records (key, record, status, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET record = excluded.record, status = excluded.status, updated_at = excluded.updated_at`,
		key, string(data), string(rec.Status), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert record %q", key)
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM company_records WHERE key = ?`, key)
	return eris.Wrapf(err, "sqlite: delete record %q", key)
}

func (s *SQLiteStore) All(ctx context.Context) (map[string]model.CompanyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, record FROM company_records`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]model.CompanyRecord)
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		if rec, ok := decodeRecord(s.path, key, []byte(data)); ok {
			out[key] = *rec
		}
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

// decodeRecord decodes one stored row. Undecodable or invalid rows are
// logged as corruption and reported absent.
func decodeRecord(path, key string, data []byte) (*model.CompanyRecord, bool) {
	var rec model.CompanyRecord
	err := json.Unmarshal(data, &rec)
	if err == nil {
		err = rec.Validate()
	}
	if err != nil {
		zap.L().Warn("cache: skipping entry", zap.Error(&CorruptionError{Path: path, Key: key, Err: err}))
		return nil, false
	}
	return &rec, true
}
