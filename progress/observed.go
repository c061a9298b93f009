package progress

import (
	"context"

	"github.com/alanbriolat/video-uploader/generic"
	"github.com/alanbriolat/video-uploader/internal/pubsub"
)

// Update is sent to watchers of an Observed store for every successful write.
type Update struct {
	ID     string
	Record Record
}

// Observed wraps a Store, publishing each written Record to subscribers (e.g. a progress bar) in write order.
type Observed struct {
	Store
	updates pubsub.Publisher[Update]
}

func NewObserved(store Store) *Observed {
	return &Observed{
		Store:   store,
		updates: pubsub.NewPublisher[Update](),
	}
}

func (o *Observed) SetItem(ctx context.Context, id string, value string) error {
	if err := o.Store.SetItem(ctx, id, value); err != nil {
		return err
	}
	if record, err := Decode(value); err == nil {
		o.updates.Send(Update{ID: id, Record: record})
	}
	return nil
}

func (o *Observed) GetItem(ctx context.Context, id string) (generic.Option[string], error) {
	return o.Store.GetItem(ctx, id)
}

// Watch subscribes to future updates. The receiver is closed when the Observed store is closed.
func (o *Observed) Watch() (pubsub.ReceiverCloser[Update], error) {
	return o.updates.Subscribe()
}

// Close stops publishing, flushing updates already written. It does not close the wrapped Store.
func (o *Observed) Close() {
	o.updates.Close()
}
