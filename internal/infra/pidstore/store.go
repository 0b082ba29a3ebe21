package pidstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"travelmcp/internal/domain"
)

const defaultLockTimeout = 5 * time.Second

var ErrInvalidRecord = errors.New("invalid process record")

// Store persists ProcessRecords keyed by server name. The database file is
// opened per operation so that several CLI invocations can share it.
type Store struct {
	mu          sync.Mutex
	path        string
	lockTimeout time.Duration
	closed      bool
}

func OpenStore(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("pid store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure pid store dir: %w", err)
	}
	store := &Store{path: trimmed, lockTimeout: defaultLockTimeout}
	if err := store.withDB(ensureSchema); err != nil {
		return nil, err
	}
	if err := store.importLegacy(legacyPath(trimmed)); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) Put(record domain.ProcessRecord) error {
	if strings.TrimSpace(record.ServerName) == "" || record.PID <= 0 {
		return ErrInvalidRecord
	}
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode process record: %w", err)
	}
	return s.update(func(bucket *bolt.Bucket) error {
		return bucket.Put([]byte(record.ServerName), value)
	})
}

func (s *Store) Get(name string) (domain.ProcessRecord, bool, error) {
	var (
		record domain.ProcessRecord
		found  bool
	)
	err := s.view(func(bucket *bolt.Bucket) error {
		value := bucket.Get([]byte(name))
		if value == nil {
			return nil
		}
		decoded, err := decodeRecord(name, value)
		if err != nil {
			return err
		}
		record, found = decoded, true
		return nil
	})
	return record, found, err
}

// List returns every record sorted by server name.
func (s *Store) List() ([]domain.ProcessRecord, error) {
	var out []domain.ProcessRecord
	err := s.view(func(bucket *bolt.Bucket) error {
		return bucket.ForEach(func(key, value []byte) error {
			record, err := decodeRecord(string(key), value)
			if err != nil {
				return err
			}
			out = append(out, record)
			return nil
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ServerName < out[j].ServerName })
	return out, err
}

// DeleteIf removes the record for name only while it still holds pid, so a
// stop never erases the record of a newer process started meanwhile.
func (s *Store) DeleteIf(name string, pid int) (bool, error) {
	removed := false
	err := s.update(func(bucket *bolt.Bucket) error {
		value := bucket.Get([]byte(name))
		if value == nil {
			return nil
		}
		record, err := decodeRecord(name, value)
		if err != nil {
			return err
		}
		if record.PID != pid {
			return nil
		}
		removed = true
		return bucket.Delete([]byte(name))
	})
	return removed, err
}

// DeleteByPID removes every record that holds pid and returns their names.
func (s *Store) DeleteByPID(pid int) ([]string, error) {
	var removed []string
	err := s.update(func(bucket *bolt.Bucket) error {
		var keys [][]byte
		if err := bucket.ForEach(func(key, value []byte) error {
			record, err := decodeRecord(string(key), value)
			if err != nil {
				return err
			}
			if record.PID == pid {
				keys = append(keys, append([]byte(nil), key...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, key := range keys {
			if err := bucket.Delete(key); err != nil {
				return err
			}
			removed = append(removed, string(key))
		}
		return nil
	})
	sort.Strings(removed)
	return removed, err
}

// FindByPID returns the name holding pid, if any.
func (s *Store) FindByPID(pid int) (string, bool, error) {
	records, err := s.List()
	if err != nil {
		return "", false, err
	}
	for _, record := range records {
		if record.PID == pid {
			return record.ServerName, true, nil
		}
	}
	return "", false, nil
}

func (s *Store) view(fn func(*bolt.Bucket) error) error {
	return s.withDB(func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			bucket := tx.Bucket([]byte(processesBucketName))
			if bucket == nil {
				return fmt.Errorf("missing processes bucket")
			}
			return fn(bucket)
		})
	})
}

func (s *Store) update(fn func(*bolt.Bucket) error) error {
	return s.withDB(func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			bucket := tx.Bucket([]byte(processesBucketName))
			if bucket == nil {
				return fmt.Errorf("missing processes bucket")
			}
			return fn(bucket)
		})
	})
}

func (s *Store) withDB(fn func(*bolt.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: s.lockTimeout})
	if err != nil {
		return fmt.Errorf("open pid store: %w", err)
	}
	fnErr := fn(db)
	if err := db.Close(); err != nil && fnErr == nil {
		fnErr = fmt.Errorf("close pid store: %w", err)
	}
	return fnErr
}

func decodeRecord(name string, value []byte) (domain.ProcessRecord, error) {
	var record domain.ProcessRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return domain.ProcessRecord{}, fmt.Errorf("decode process record %s: %w", name, err)
	}
	record.ServerName = name
	return record, nil
}
