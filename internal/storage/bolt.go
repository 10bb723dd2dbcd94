package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketDocuments = "documents"

// Bolt is a Backend storing the document under one key of a bbolt bucket.
type Bolt struct {
	db  *bolt.DB
	key string
}

// OpenBolt opens (creating if needed) the bbolt file at path.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketDocuments))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize bolt database: %w", err)
	}
	return &Bolt{db: db, key: DocumentKey}, nil
}

// Close closes the bolt file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// Load returns the stored document, or nil when nothing has been saved yet.
func (b *Bolt) Load(_ context.Context) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bucketDocuments)).Get([]byte(b.key)); v != nil {
			// v is only valid inside the transaction.
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", b.key, err)
	}
	return value, nil
}

// Save replaces the stored document.
func (b *Bolt) Save(_ context.Context, data []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketDocuments)).Put([]byte(b.key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", b.key, err)
	}
	return nil
}
