package progress

import (
	"context"
	"fmt"

	"github.com/alanbriolat/video-uploader/generic"
	"github.com/alanbriolat/video-uploader/internal/sync_"
)

// A Store maps an upload identifier (the source file path) to an encoded Record. It is shared by every transfer in
// the process and by external pollers, so implementations must be safe for concurrent use. Nothing in this module
// deletes entries.
type Store interface {
	SetItem(ctx context.Context, id string, value string) error
	// GetItem returns None if nothing was ever written for id.
	GetItem(ctx context.Context, id string) (generic.Option[string], error)
}

// Get reads and decodes the Record for id, if there is one.
func Get(ctx context.Context, store Store, id string) (generic.Option[Record], error) {
	item, err := store.GetItem(ctx, id)
	if err != nil {
		return generic.None[Record](), fmt.Errorf("failed to read progress for %q: %w", id, err)
	}
	value, ok := item.Get()
	if !ok {
		return generic.None[Record](), nil
	}
	if record, err := Decode(value); err != nil {
		return generic.None[Record](), err
	} else {
		return generic.Some(record), nil
	}
}

// Put encodes and writes the Record for id.
func Put(ctx context.Context, store Store, id string, record Record) error {
	value, err := record.Encode()
	if err != nil {
		return err
	}
	if err := store.SetItem(ctx, id, value); err != nil {
		return fmt.Errorf("failed to write progress for %q: %w", id, err)
	}
	return nil
}

// MemoryStore is an in-process Store. Tests should create one each rather than share one.
type MemoryStore struct {
	items *sync_.RWMutexed[map[string]string]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: sync_.NewRWMutexed(make(map[string]string))}
}

func (s *MemoryStore) SetItem(_ context.Context, id string, value string) error {
	return s.items.Locked(func(items map[string]string) error {
		items[id] = value
		return nil
	})
}

func (s *MemoryStore) GetItem(_ context.Context, id string) (item generic.Option[string], err error) {
	err = s.items.RLocked(func(items map[string]string) error {
		if value, ok := items[id]; ok {
			item = generic.Some(value)
		}
		return nil
	})
	return item, err
}

// Len returns how many identifiers have a record.
func (s *MemoryStore) Len() (n int) {
	_ = s.items.RLocked(func(items map[string]string) error {
		n = len(items)
		return nil
	})
	return n
}
