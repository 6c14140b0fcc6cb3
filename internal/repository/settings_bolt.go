package repository

import (
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned by Get for a key that was never written.
var ErrNotFound = errors.New("not found")

var bucketSettings = []byte("settings")

// BoltSettings implements SettingsRepo on a single bbolt bucket.
type BoltSettings struct {
	db *bolt.DB
}

var _ SettingsRepo = (*BoltSettings)(nil)

// OpenSettings opens or creates the settings database at path.
func OpenSettings(path string) (*BoltSettings, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSettings)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create settings bucket: %w", err)
	}

	return &BoltSettings{db: db}, nil
}

func (s *BoltSettings) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSettings)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketSettings)
		}
		v := b.Get([]byte(key))
		if v == nil {
			return fmt.Errorf("setting %s: %w", key, ErrNotFound)
		}
		// v is only valid inside the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltSettings) Put(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSettings)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketSettings)
		}
		return b.Put([]byte(key), value)
	})
}

func (s *BoltSettings) Close() error {
	return s.db.Close()
}
