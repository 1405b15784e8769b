package secretstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// Bolt stores secrets in a single-file BBolt database. SetMany runs in one
// transaction and the file lock serialises concurrent processes.
type Bolt struct {
	db     *bbolt.DB
	bucket []byte
}

var _ Store = (*Bolt)(nil)

// OpenBolt opens (creating if needed) the database at path, keeping keys in
// the bucket named service.
func OpenBolt(path, service string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create token dir: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return &Bolt{db: db, bucket: []byte(service)}, nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

// ID is the database file plus the bucket.
func (b *Bolt) ID() string {
	return "file:" + b.db.Path() + "#" + string(b.bucket)
}

func (b *Bolt) Get(key string) (string, error) {
	var value string
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return ErrNotFound
		}
		data := bucket.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		value = string(data)
		return nil
	})
	return value, err
}

func (b *Bolt) Set(key, value string) error {
	return b.SetMany(Entry{Key: key, Value: value})
}

func (b *Bolt) Delete(key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
}

func (b *Bolt) SetMany(entries ...Entry) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(b.bucket)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := bucket.Put([]byte(e.Key), []byte(e.Value)); err != nil {
				return err
			}
		}
		return nil
	})
}
