package progress

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Threshold is how many percentage points progress must advance past the last stored Record before a new one is
// written. Writing on every chunk would make the Store the bottleneck for streams of small chunks.
const Threshold = 3

// Tracker counts the bytes of one transfer and publishes coalesced Records to a Store. It is an io.Writer so it can
// sit behind io.TeeReader on the byte stream; writes never fail, so a Store outage can't break the transfer.
// Once Fail has been called the error Record is final and further progress is counted but not written.
type Tracker struct {
	ctx   context.Context
	store Store
	id    string
	total int64
	log   *zap.SugaredLogger

	mu     sync.Mutex
	loaded int64
	failed bool
}

func NewTracker(ctx context.Context, store Store, id string, total int64) *Tracker {
	return &Tracker{
		ctx:   ctx,
		store: store,
		id:    id,
		total: total,
		log:   zap.S().Named("progress").With("upload_id", id),
	}
}

// Write records len(p) more bytes as transferred.
func (t *Tracker) Write(p []byte) (int, error) {
	t.Add(int64(len(p)))
	return len(p), nil
}

// Add records n more bytes as transferred and writes a processing Record if the percentage has advanced by more than
// Threshold since the last stored Record for this identifier.
func (t *Tracker) Add(n int64) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loaded += n
	if t.failed {
		return
	}

	var last int64
	if previous, err := Get(t.ctx, t.store, t.id); err != nil {
		t.log.Warnf("ignoring unreadable progress: %v", err)
	} else if record, ok := previous.Get(); ok {
		last = record.Percent()
	}

	current := percent(t.loaded, t.total)
	if current-last <= Threshold {
		return
	}
	record := Record{Total: t.total, Loaded: t.loaded, Status: StatusProcessing}
	if err := Put(t.ctx, t.store, t.id, record); err != nil {
		t.log.Warnf("dropping progress update: %v", err)
		return
	}
	t.log.Debugf("progress %d%% (%d/%d bytes)", current, t.loaded, t.total)
}

// Fail writes an error Record carrying err's message.
func (t *Tracker) Fail(err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed = true
	return Put(t.ctx, t.store, t.id, ErrorRecord(t.total, t.loaded, err))
}

func (t *Tracker) Loaded() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loaded
}

func (t *Tracker) Total() int64 {
	return t.total
}
