package boltdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.etcd.io/bbolt"

	"github.com/alanbriolat/video-uploader/generic"
	"github.com/alanbriolat/video-uploader/internal/sync_"
)

var (
	ErrBusy     = errors.New("progress store is locked by another process")
	ErrReadOnly = errors.New("progress store is read-only")
)

// Shared is a Database that only has the file open, and therefore locked, for the duration of each call. bbolt
// allows one writer or many readers at a time, so an upload writing progress and a `status` or `serve` process
// polling it have to take turns.
type Shared struct {
	path string
	opts Options
	// Serialises opens, since a second flock on the same file from this process would wait on the first.
	mu sync.Mutex
	// Writers own the ids they write, so what they have written or read can be answered without reopening.
	cache *sync_.RWMutexed[map[string]generic.Option[string]]
}

var _ Database = (*Shared)(nil)

// OpenShared creates the file and its buckets for a writer. A reader is not checked until its first call, and
// sees no records until the file exists.
func OpenShared(path string, opts Options) (*Shared, error) {
	s := &Shared{path: path, opts: opts}
	if opts.ReadOnly {
		return s, nil
	}
	s.cache = sync_.NewRWMutexed(make(map[string]generic.Option[string]))
	if err := s.with(func(Database) error { return nil }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Shared) with(f func(db Database) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := New(s.path, s.opts)
	if errors.Is(err, bbolt.ErrTimeout) {
		return fmt.Errorf("%w: %s", ErrBusy, s.path)
	} else if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr).ErrorOrNil()
		}
	}()
	return f(db)
}

func (s *Shared) missing(err error) bool {
	return s.opts.ReadOnly && errors.Is(err, os.ErrNotExist)
}

func (s *Shared) SetItem(ctx context.Context, id string, value string) error {
	if s.opts.ReadOnly {
		return ErrReadOnly
	}
	err := s.with(func(db Database) error {
		return db.SetItem(ctx, id, value)
	})
	if err != nil {
		return err
	}
	return s.cache.Locked(func(cache map[string]generic.Option[string]) error {
		cache[id] = generic.Some(value)
		return nil
	})
}

func (s *Shared) GetItem(ctx context.Context, id string) (item generic.Option[string], err error) {
	if s.cache != nil {
		found := false
		_ = s.cache.RLocked(func(cache map[string]generic.Option[string]) error {
			item, found = cache[id]
			return nil
		})
		if found {
			return item, nil
		}
	}
	err = s.with(func(db Database) (err error) {
		item, err = db.GetItem(ctx, id)
		return err
	})
	if s.missing(err) {
		return generic.None[string](), nil
	} else if err != nil {
		return generic.None[string](), err
	}
	if s.cache != nil {
		_ = s.cache.Locked(func(cache map[string]generic.Option[string]) error {
			cache[id] = item
			return nil
		})
	}
	return item, nil
}

// List always reads the file, since other processes may have added records.
func (s *Shared) List(ctx context.Context) (items map[string]string, err error) {
	err = s.with(func(db Database) (err error) {
		items, err = db.List(ctx)
		return err
	})
	if s.missing(err) {
		return map[string]string{}, nil
	} else if err != nil {
		return nil, err
	}
	return items, nil
}

// Close is a no-op, the file is never left open.
func (s *Shared) Close() error {
	return nil
}
