package transfer

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/alanbriolat/video-uploader/generic"
	"github.com/alanbriolat/video-uploader/internal/promise"
	"github.com/alanbriolat/video-uploader/progress"
)

// A Dialer opens an authenticated FTP session.
type Dialer interface {
	Dial(ctx context.Context, dest Destination) (Conn, error)
}

// Conn is a logged-in FTP session. It is used for exactly one transfer and then closed.
type Conn interface {
	SetBinary() error
	Store(path string, r io.Reader) error
	// ControlErrors receives at most one error, if the control connection fails outside of a command.
	ControlErrors() <-chan error
	Close() error
}

// Client streams sources to FTP destinations, publishing progress to a shared Store.
type Client struct {
	dialer Dialer
	store  progress.Store
}

func NewClient(dialer Dialer, store progress.Store) *Client {
	return &Client{dialer: dialer, store: store}
}

// Transfer runs Start and waits for the outcome. Cancelling ctx aborts the session, which still settles normally.
func (c *Client) Transfer(ctx context.Context, dest Destination, source Source) error {
	_, err := c.Start(ctx, dest, source).Wait(context.WithoutCancel(ctx))
	return err
}

// Start begins a transfer in the background. The returned promise settles exactly once, after the connection is
// closed and, on failure, after an error Record has been written for source.ID.
func (c *Client) Start(ctx context.Context, dest Destination, source Source) *promise.Promise[generic.Void] {
	ctx, cancel := context.WithCancel(ctx)
	s := &session{
		ctx:    ctx,
		cancel: cancel,
		dest:   dest,
		source: source,
		result: promise.New[generic.Void](),
		log:    zap.S().Named("transfer").With("upload_id", source.ID, "destination", dest.String()),
	}

	// Progress writes outlive cancellation so the error Record still lands
	storeCtx := context.WithoutCancel(ctx)
	total, err := source.Size()
	if err != nil {
		s.tracker = progress.NewTracker(storeCtx, c.store, source.ID, 0)
		s.finish(&Error{Kind: ErrSourceSize, Err: err})
		return s.result
	}
	s.tracker = progress.NewTracker(storeCtx, c.store, source.ID, total)

	go s.run(c.dialer)
	return s.result
}

type session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	dest    Destination
	source  Source
	tracker *progress.Tracker
	result  *promise.Promise[generic.Void]
	log     *zap.SugaredLogger

	mu   sync.Mutex
	conn Conn
}

func (s *session) run(dialer Dialer) {
	s.log.Debugf("connecting")
	conn, err := dialer.Dial(s.ctx, s.dest)
	if err != nil {
		// A Dialer may classify its own failure, e.g. binary mode refused during login
		var classified *Error
		if !errors.As(err, &classified) {
			err = &Error{Kind: ErrConnect, Err: err}
		}
		s.finish(err)
		return
	}
	if !s.attach(conn) {
		_ = conn.Close()
		return
	}
	go s.watch(conn)

	if err := conn.SetBinary(); err != nil {
		s.finish(&Error{Kind: ErrBinaryMode, Err: err})
		return
	}
	if s.result.Settled() {
		return
	}

	remotePath := s.source.RemotePath(s.dest)
	s.log.Debugf("storing %d bytes as %s", s.tracker.Total(), remotePath)
	reader := io.TeeReader(&readerContext{ctx: s.ctx, r: s.source.Reader}, s.tracker)
	if err := conn.Store(remotePath, reader); err != nil {
		s.finish(&Error{Kind: ErrPut, Err: err})
		return
	}
	s.finish(nil)
}

// attach records the open connection, unless the session already ended.
func (s *session) attach(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result.Settled() {
		return false
	}
	s.conn = conn
	return true
}

func (s *session) watch(conn Conn) {
	select {
	case err, ok := <-conn.ControlErrors():
		if ok && err != nil {
			s.finish(&Error{Kind: ErrControl, Err: err})
		}
	case <-s.result.Done():
	}
}

// finish ends the session with the first outcome reported; later outcomes are logged and dropped.
func (s *session) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result.Settled() {
		if err != nil {
			s.log.Debugf("ignoring error after transfer settled: %v", err)
		}
		return
	}

	if s.conn != nil {
		if closeErr := s.conn.Close(); closeErr != nil {
			s.log.Debugf("error closing FTP connection: %v", closeErr)
		}
	}
	if err != nil {
		if recordErr := s.tracker.Fail(err); recordErr != nil {
			s.log.Warnf("failed to record transfer error: %v", recordErr)
		}
	}
	// Unblocks a Store still reading the source
	s.cancel()

	if err != nil {
		s.log.Errorf("transfer failed after %d/%d bytes: %v", s.tracker.Loaded(), s.tracker.Total(), err)
		_ = s.result.Reject(err)
	} else {
		s.log.Infof("transfer complete, %d bytes", s.tracker.Loaded())
		_ = s.result.Resolve(generic.NewVoid())
	}
}
