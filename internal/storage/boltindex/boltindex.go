// Package boltindex implements port.HashIndex in a single bbolt file.
package boltindex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"ledgerscan/internal/domain"
)

const bucketName = "stored_files"

// Index maps content hashes to stored files.
type Index struct {
	db *bbolt.DB
}

// Open opens or creates the index file at path.
func Open(path string) (*Index, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	return &Index{db: db}, nil
}

func (i *Index) Lookup(_ context.Context, hash string) (*domain.StoredFile, error) {
	var file *domain.StoredFile
	err := i.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(hash))
		if data == nil {
			return domain.ErrNotFound
		}
		return json.Unmarshal(data, &file)
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Record stores the mapping. An existing entry for the hash is replaced.
func (i *Index) Record(_ context.Context, file *domain.StoredFile) error {
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshaling stored file: %w", err)
	}
	return i.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(file.Hash), data)
	})
}

// Close closes the index file.
func (i *Index) Close() error {
	return i.db.Close()
}
