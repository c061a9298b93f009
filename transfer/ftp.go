package transfer

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jlaffaye/ftp"
)

const DefaultTimeout = 30 * time.Second

// FTPDialer connects to real FTP servers in passive mode.
type FTPDialer struct {
	// Timeout bounds dialing and each control command. Zero means DefaultTimeout.
	Timeout time.Duration
	// DisableEPSV falls back to plain PASV, for servers that mishandle EPSV.
	DisableEPSV bool
}

func (d FTPDialer) Dial(ctx context.Context, dest Destination) (Conn, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	watch := newControlWatch()
	netDialer := &net.Dialer{Timeout: timeout}
	var dialed atomic.Int32
	// The first connection is the control channel, the rest are data connections
	dialFunc := func(network, address string) (net.Conn, error) {
		conn, err := netDialer.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		if dialed.Add(1) == 1 {
			return watch.wrap(conn), nil
		}
		return conn, nil
	}

	server, err := ftp.Dial(
		dest.Address(),
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(timeout),
		ftp.DialWithDisabledEPSV(d.DisableEPSV),
		ftp.DialWithDialFunc(dialFunc),
	)
	if err != nil {
		return nil, err
	}
	// Login ends by switching to binary mode, so a refusal shows up here rather than in SetBinary
	if err := server.Login(dest.User, dest.Password); err != nil {
		var reply *textproto.Error
		refusedBinary := watch.lastVerb() == "TYPE" && errors.As(err, &reply)
		watch.close()
		_ = server.Quit()
		if refusedBinary {
			return nil, &Error{Kind: ErrBinaryMode, Err: err}
		}
		return nil, err
	}
	return &ftpConn{server: server, watch: watch}, nil
}

type ftpConn struct {
	server *ftp.ServerConn
	watch  *controlWatch
}

func (c *ftpConn) SetBinary() error {
	return c.server.Type(ftp.TransferTypeBinary)
}

func (c *ftpConn) Store(path string, r io.Reader) error {
	return c.server.Stor(path, r)
}

func (c *ftpConn) ControlErrors() <-chan error {
	return c.watch.errs
}

func (c *ftpConn) Close() error {
	c.watch.close()
	return c.server.Quit()
}

// controlWatch turns I/O failures on the control connection into a single asynchronous error, so a dropped control
// channel fails the transfer even while the data connection is busy.
type controlWatch struct {
	errs   chan error
	once   sync.Once
	closed atomic.Bool
	// verb of the last command written, e.g. "TYPE"
	verb atomic.Value
}

func newControlWatch() *controlWatch {
	return &controlWatch{errs: make(chan error, 1)}
}

func (w *controlWatch) wrap(conn net.Conn) net.Conn {
	return &watchedConn{Conn: conn, watch: w}
}

// close stops reporting, since errors from our own shutdown are expected.
func (w *controlWatch) close() {
	w.closed.Store(true)
}

func (w *controlWatch) lastVerb() string {
	verb, _ := w.verb.Load().(string)
	return verb
}

func (w *controlWatch) sent(p []byte) {
	line := string(p)
	if end := strings.IndexAny(line, " \r\n"); end >= 0 {
		line = line[:end]
	}
	if line != "" {
		w.verb.Store(strings.ToUpper(line))
	}
}

func (w *controlWatch) report(err error) {
	if w.closed.Load() {
		return
	}
	w.once.Do(func() {
		w.errs <- err
	})
}

type watchedConn struct {
	net.Conn
	watch *controlWatch
}

func (c *watchedConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if err != nil {
		c.watch.report(err)
	}
	return n, err
}

func (c *watchedConn) Write(p []byte) (int, error) {
	c.watch.sent(p)
	n, err := c.Conn.Write(p)
	if err != nil {
		c.watch.report(err)
	}
	return n, err
}
