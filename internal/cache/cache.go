// Package cache persists CompanyRecords keyed by normalized company name so
// that interrupted batches resume without repeating searches.
package cache

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rename-cli/internal/model"
)

// Store is a persistent record map. Get returns nil, nil for an absent key.
// Implementations serialize their own writes, but callers inside a batch
// should go through an Owner.
type Store interface {
	Get(ctx context.Context, key string) (*model.CompanyRecord, error)
	Put(ctx context.Context, key string, rec model.CompanyRecord) error
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) (map[string]model.CompanyRecord, error)
	Close() error
}

// Backend names a Store implementation.
type Backend string

// Supported backends.
const (
	BackendJSON     Backend = "json"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Backend Backend
	// Path is the JSON file or SQLite database path.
	Path string
	// DSN is the Postgres connection string.
	DSN  string
	Pool *PoolConfig
}

// Open returns the Store described by opts, migrated and ready for use.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendJSON, "":
		s, err := OpenJSON(opts.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		s, err := NewSQLite(opts.Path)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
		return s, nil
	case BackendPostgres:
		s, err := NewPostgres(ctx, opts.DSN, opts.Pool)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("cache: unknown backend %q", opts.Backend)
	}
}

// CorruptionError reports cache content that could not be decoded. It is
// logged and the affected data treated as absent; it never stops a run.
type CorruptionError struct {
	Path string
	Key  string
	Err  error
}

func (e *CorruptionError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache: corrupt entry %q in %s: %v", e.Key, e.Path, e.Err)
	}
	return fmt.Sprintf("cache: corrupt file %s: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}
