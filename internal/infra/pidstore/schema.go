package pidstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"travelmcp/internal/domain"
)

const (
	schemaVersion = 1

	metaBucketName      = "meta"
	processesBucketName = "processes"
	versionKey          = "version"

	legacyFileName = ".mcp_pids.json"
)

func ensureSchema(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucketName))
		if err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(processesBucketName)); err != nil {
			return fmt.Errorf("create processes bucket: %w", err)
		}
		current := readSchemaVersion(meta)
		switch {
		case current == 0:
			return writeSchemaVersion(meta, schemaVersion)
		case current > schemaVersion:
			return fmt.Errorf("unsupported pid store schema version %d", current)
		default:
			return nil
		}
	})
}

func readSchemaVersion(meta *bolt.Bucket) int {
	value := meta.Get([]byte(versionKey))
	if len(value) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(value))
}

func writeSchemaVersion(meta *bolt.Bucket, version int) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(version))
	return meta.Put([]byte(versionKey), buf)
}

func legacyPath(storePath string) string {
	return filepath.Join(filepath.Dir(storePath), legacyFileName)
}

type legacyRecord struct {
	PID       int     `json:"pid"`
	StartedAt float64 `json:"started_at"`
}

// importLegacy moves records from the JSON registry written by earlier
// releases into the database and renames the file so it is read only once.
// Existing database entries win over imported ones.
func (s *Store) importLegacy(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read legacy pid file: %w", err)
	}
	var legacy map[string]legacyRecord
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("decode legacy pid file: %w", err)
	}
	err = s.update(func(bucket *bolt.Bucket) error {
		for name, entry := range legacy {
			if strings.TrimSpace(name) == "" || entry.PID <= 0 || bucket.Get([]byte(name)) != nil {
				continue
			}
			secs := int64(entry.StartedAt)
			nanos := int64((entry.StartedAt - float64(secs)) * float64(time.Second))
			value, err := json.Marshal(domain.ProcessRecord{PID: entry.PID, StartedAt: time.Unix(secs, nanos).UTC()})
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(name), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return os.Rename(path, path+".imported")
}
