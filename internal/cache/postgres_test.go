package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rename-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT record FROM company_records WHERE key = \$1`).
		WithArgs("absent").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	data, err := json.Marshal(changedRecord("A", "B"))
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT record FROM company_records`).
		WithArgs("a").
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(data))

	got, err := s.Get(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "B", got.NewName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT record FROM company_records`).
		WithArgs("a").
		WillReturnError(errors.New("connection refused"))

	_, err := s.Get(context.Background(), "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get record")
}

func TestPostgresStore_Put(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`(?s)INSERT INTO company_records .* ON CONFLICT \(key\) DO UPDATE`).
		WithArgs("a", pgxmock.AnyArg(), "changed", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Put(context.Background(), "a", changedRecord("A", "B")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Put_InvalidRecordSkipsQuery(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	err := s.Put(context.Background(), "a", model.CompanyRecord{Status: model.StatusChanged})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM company_records WHERE key = \$1`).
		WithArgs("a").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.Delete(context.Background(), "a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_All(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	good, err := json.Marshal(changedRecord("A", "B"))
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT key, record FROM company_records`).
		WillReturnRows(pgxmock.NewRows([]string{"key", "record"}).
			AddRow("a", good).
			AddRow("bad", []byte(`{"status":"changed"}`)))

	all, err := s.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, "B", all["a"].NewName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS company_records`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
