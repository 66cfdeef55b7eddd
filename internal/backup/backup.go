// Package backup keeps a local copy of data the popup must be able to show
// when the background process cannot answer. Today that is the user info.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/five82/tabtime/internal/tracker"
)

// FileName is the database file created under the state directory.
const FileName = "backup.db"

var (
	bucketUserInfo = []byte("user_info")
	keyCurrent     = []byte("current")
)

type record struct {
	Info    tracker.UserInfo `json:"info"`
	SavedAt time.Time        `json:"savedAt"`
}

// Store is a bbolt-backed backup. The database is opened per call so that
// several surfaces can share one file without holding its lock.
type Store struct {
	path        string
	lockTimeout time.Duration
}

// New returns a store for the database at path.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("backup db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &Store{path: path, lockTimeout: 500 * time.Millisecond}, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// SaveUserInfo replaces the stored user info.
func (s *Store) SaveUserInfo(info tracker.UserInfo) error {
	raw, err := json.Marshal(record{Info: info, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode user info: %w", err)
	}
	return s.with(func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists(bucketUserInfo)
			if err != nil {
				return err
			}
			return b.Put(keyCurrent, raw)
		})
	})
}

// LoadUserInfo returns the stored user info. ok is false when nothing has
// been saved yet.
func (s *Store) LoadUserInfo() (info tracker.UserInfo, savedAt time.Time, ok bool, err error) {
	err = s.with(func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketUserInfo)
			if b == nil {
				return nil
			}
			raw := b.Get(keyCurrent)
			if raw == nil {
				return nil
			}
			var rec record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("decode user info: %w", err)
			}
			info, savedAt, ok = rec.Info, rec.SavedAt, true
			return nil
		})
	})
	return info, savedAt, ok, err
}

// Clear removes the stored user info.
func (s *Store) Clear() error {
	return s.with(func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			if tx.Bucket(bucketUserInfo) == nil {
				return nil
			}
			return tx.DeleteBucket(bucketUserInfo)
		})
	})
}

func (s *Store) with(fn func(db *bolt.DB) error) error {
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: s.lockTimeout})
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer func() { _ = db.Close() }()
	return fn(db)
}
