// Package boltdb persists progress records in a bbolt file, so they outlive the uploading process and can be read
// back by a later `status` invocation.
package boltdb

import (
	"context"
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/alanbriolat/video-uploader/generic"
	"github.com/alanbriolat/video-uploader/progress"
)

var Buckets = struct {
	Metadata []byte
	Progress []byte
}{
	Metadata: []byte("__metadata__"),
	Progress: []byte("progress"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

type Database interface {
	Close() error

	progress.Store
	List(ctx context.Context) (map[string]string, error)
}

type database struct {
	*bbolt.DB
}

type Options struct {
	ReadOnly bool
	// How long to wait for another process to release the file lock.
	Timeout time.Duration
}

func New(path string, opts Options) (_ Database, err error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: opts.ReadOnly, Timeout: opts.Timeout})
	if err != nil {
		return nil, err
	}
	if opts.ReadOnly {
		return &database{db}, nil
	}
	err = db.Update(func(tx *bbolt.Tx) (err error) {
		var metadata *bbolt.Bucket
		if metadata, err = tx.CreateBucketIfNotExists(Buckets.Metadata); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Progress); err != nil {
			return err
		}
		if versionBytes, err := json.Marshal(currentVersion); err != nil {
			return err
		} else {
			return metadata.Put(MetadataKeys.Version, versionBytes)
		}
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &database{db}, nil
}

func (d database) SetItem(_ context.Context, id string, value string) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Progress).Put([]byte(id), []byte(value))
	})
}

func (d database) GetItem(_ context.Context, id string) (item generic.Option[string], err error) {
	err = d.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Progress)
		if bucket == nil {
			return nil
		}
		// Bytes returned by Get are only valid for the life of the transaction, string() copies them
		if value := bucket.Get([]byte(id)); value != nil {
			item = generic.Some(string(value))
		}
		return nil
	})
	return item, err
}

func (d database) List(_ context.Context) (items map[string]string, err error) {
	items = make(map[string]string)
	err = d.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Progress)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			items[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
