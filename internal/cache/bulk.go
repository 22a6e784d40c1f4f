package cache

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rename-cli/internal/model"
)

// BulkWriter is implemented by stores that can write many records in one
// round trip.
type BulkWriter interface {
	PutMany(ctx context.Context, recs map[string]model.CompanyRecord) (int64, error)
}

// Import copies recs into dst, using PutMany when dst supports it. Invalid
// records are skipped and logged. It returns the number of records written.
func Import(ctx context.Context, dst Store, recs map[string]model.CompanyRecord) (int64, error) {
	valid := make(map[string]model.CompanyRecord, len(recs))
	for k, rec := range recs {
		if err := rec.Validate(); err != nil {
			zap.L().Warn("cache: skipping invalid record on import", zap.String("key", k), zap.Error(err))
			continue
		}
		valid[k] = rec
	}

	if bw, ok := dst.(BulkWriter); ok {
		return bw.PutMany(ctx, valid)
	}

	var n int64
	for _, k := range sortedKeys(valid) {
		if err := dst.Put(ctx, k, valid[k]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

var bulkColumns = []string{"key", "record", "status", "updated_at"}

const bulkTemp = "_tmp_company_records"

// PutMany upserts recs through a temp table: COPY the rows in, then
// INSERT ... ON CONFLICT into company_records, all in one transaction.
func (s *PostgresStore) PutMany(ctx context.Context, recs map[string]model.CompanyRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(recs))
	for _, k := range sortedKeys(recs) {
		rec := recs[k]
		if err := rec.Validate(); err != nil {
			return 0, eris.Wrapf(err, "postgres: bulk put %q", k)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal record")
		}
		rows = append(rows, []any{k, data, string(rec.Status), now})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk put: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`CREATE TEMP TABLE `+pgx.Identifier{bulkTemp}.Sanitize()+
			` (LIKE company_records INCLUDING DEFAULTS) ON COMMIT DROP`); err != nil {
		return 0, eris.Wrap(err, "postgres: bulk put: create temp table")
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{bulkTemp}, bulkColumns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrap(err, "postgres: bulk put: COPY into temp table")
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO company_records (key, record, status, updated_at)
		 SELECT key, record, status, updated_at FROM `+pgx.Identifier{bulkTemp}.Sanitize()+`
		 ON CONFLICT (key) DO UPDATE SET record = EXCLUDED.record, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk put: insert on conflict")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: bulk put: commit tx")
	}
	return tag.RowsAffected(), nil
}

func sortedKeys(recs map[string]model.CompanyRecord) []string {
	keys := make([]string, 0, len(recs))
	for k := range recs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
