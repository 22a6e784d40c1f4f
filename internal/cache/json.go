package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rename-cli/internal/model"
)

// JSONStore keeps every record in memory and rewrites one JSON object file
// after each change. Writes go to a temp file that is synced and renamed
// over the target, so a crash leaves either the old or the new file.
type JSONStore struct {
	path string

	mu      sync.Mutex
	records map[string]model.CompanyRecord
}

// OpenJSON loads the cache file at path. A missing file yields an empty
// store. An undecodable file is moved aside to "<path>.corrupt", logged,
// and also yields an empty store. A file that cannot be read at all is
// logged and left in place. Entries that fail to decode are skipped
// individually.
func OpenJSON(path string) (*JSONStore, error) {
	if path == "" {
		return nil, eris.New("cache: json path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrapf(err, "cache: create dir for %s", path)
	}

	s := &JSONStore{path: path, records: make(map[string]model.CompanyRecord)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		zap.L().Warn("cache: unreadable, starting empty", zap.String("path", path), zap.Error(err))
		return s, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.quarantine(&CorruptionError{Path: path, Err: err})
		return s, nil
	}

	for key, msg := range raw {
		var rec model.CompanyRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			zap.L().Warn("cache: skipping entry", zap.Error(&CorruptionError{Path: path, Key: key, Err: err}))
			continue
		}
		if err := rec.Validate(); err != nil {
			zap.L().Warn("cache: skipping entry", zap.Error(&CorruptionError{Path: path, Key: key, Err: err}))
			continue
		}
		s.records[key] = rec
	}
	zap.L().Debug("cache: loaded", zap.String("path", path), zap.Int("records", len(s.records)))
	return s, nil
}

func (s *JSONStore) quarantine(cerr *CorruptionError) {
	zap.L().Warn("cache: starting empty", zap.Error(cerr))
	if err := os.Rename(s.path, s.path+".corrupt"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("cache: could not move corrupt file aside", zap.String("path", s.path), zap.Error(err))
	}
}

// Get returns a copy of the record stored under key.
func (s *JSONStore) Get(_ context.Context, key string) (*model.CompanyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Put stores rec under key and rewrites the file.
func (s *JSONStore) Put(_ context.Context, key string, rec model.CompanyRecord) error {
	if err := rec.Validate(); err != nil {
		return eris.Wrapf(err, "cache: put %q", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.records[key]
	s.records[key] = rec
	if err := s.flush(); err != nil {
		if had {
			s.records[key] = prev
		} else {
			delete(s.records, key)
		}
		return err
	}
	return nil
}

// Delete removes key and rewrites the file. Deleting an absent key is a
// no-op.
func (s *JSONStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.records[key]
	if !had {
		return nil
	}
	delete(s.records, key)
	if err := s.flush(); err != nil {
		s.records[key] = prev
		return err
	}
	return nil
}

// All returns a copy of every record.
func (s *JSONStore) All(_ context.Context) (map[string]model.CompanyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.CompanyRecord, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out, nil
}

// Close is a no-op; every change is already on disk.
func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) flush() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return eris.Wrap(err, "cache: marshal records")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "cache: create temp file")
	}
	name := tmp.Name()
	defer os.Remove(name) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "cache: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "cache: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "cache: close temp file")
	}
	if err := os.Rename(name, s.path); err != nil {
		return eris.Wrapf(err, "cache: replace %s", s.path)
	}
	return nil
}
