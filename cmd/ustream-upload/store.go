package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanbriolat/video-uploader/internal/boltdb"
	"github.com/alanbriolat/video-uploader/internal/config"
	"github.com/alanbriolat/video-uploader/internal/redisstore"
	"github.com/alanbriolat/video-uploader/progress"
)

var errStoreBusy = boltdb.ErrBusy

type openedStore struct {
	progress.Store
	kind  config.StoreKind
	close func() error
	// list is only available for bolt stores.
	list func(ctx context.Context) (map[string]string, error)
}

func (s *openedStore) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// openStore opens the configured progress store. A bolt file is only locked while each call runs, so uploads and
// readers in other processes can share it.
func openStore(ctx context.Context, cfg config.ProgressConfig, readOnly bool) (*openedStore, error) {
	kind, location, err := cfg.StoreLocation()
	if err != nil {
		return nil, err
	}
	switch kind {
	case config.StoreBolt:
		db, err := boltdb.OpenShared(location, boltdb.Options{ReadOnly: readOnly, Timeout: cfg.LockTimeout})
		if errors.Is(err, errStoreBusy) {
			return nil, err
		} else if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", location, err)
		}
		return &openedStore{Store: db, kind: kind, close: db.Close, list: db.List}, nil
	case config.StoreRedis:
		store, err := redisstore.Open(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return &openedStore{Store: store, kind: kind, close: store.Close}, nil
	default:
		return &openedStore{Store: progress.NewMemoryStore(), kind: kind}, nil
	}
}
