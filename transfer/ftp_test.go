package transfer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/video-uploader/progress"
)

// fakeFTPServer speaks just enough FTP for one passive-mode STOR.
type fakeFTPServer struct {
	listener net.Listener
	// Reply to the Nth TYPE command (1-based); anything else gets 200.
	typeReplies map[int]string
	// Reply to PASS, if not "230 logged in".
	passReply string

	mu         sync.Mutex
	commands   []string
	storedPath string
	stored     bytes.Buffer
	done       chan struct{}
}

func startFakeFTPServer(t *testing.T) *fakeFTPServer {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	s := &fakeFTPServer{listener: listener, typeReplies: map[int]string{}, done: make(chan struct{})}
	t.Cleanup(func() { _ = listener.Close() })
	return s
}

func (s *fakeFTPServer) destination() Destination {
	addr := s.listener.Addr().(*net.TCPAddr)
	return Destination{Host: "127.0.0.1", Port: addr.Port, User: "u1234", Password: "secret", Path: "/uploads/98765"}
}

func (s *fakeFTPServer) serve() {
	defer close(s.done)
	conn, err := s.listener.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = fmt.Fprintf(conn, "%s\r\n", line) }
	var data net.Listener
	typeCount := 0

	reply("220 fake server ready")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()
		verb, arg, _ := strings.Cut(line, " ")
		switch strings.ToUpper(verb) {
		case "USER":
			reply("331 password required")
		case "PASS":
			if s.passReply != "" {
				reply(s.passReply)
			} else {
				reply("230 logged in")
			}
		case "TYPE":
			typeCount++
			if custom, ok := s.typeReplies[typeCount]; ok {
				reply(custom)
			} else {
				reply("200 type set")
			}
		case "EPSV":
			if data, err = net.Listen("tcp", "127.0.0.1:0"); err != nil {
				reply("425 can't open data connection")
				continue
			}
			reply(fmt.Sprintf("229 Entering Extended Passive Mode (|||%d|)", data.Addr().(*net.TCPAddr).Port))
		case "STOR":
			dataConn, err := data.Accept()
			_ = data.Close()
			if err != nil {
				reply("425 can't open data connection")
				continue
			}
			reply("150 ok to send data")
			s.mu.Lock()
			s.storedPath = arg
			_, _ = io.Copy(&s.stored, dataConn)
			s.mu.Unlock()
			_ = dataConn.Close()
			reply("226 transfer complete")
		case "QUIT":
			reply("221 goodbye")
			return
		default:
			reply("502 command not implemented")
		}
	}
}

func TestFTPDialer_Transfer(t *testing.T) {
	assert := assert_.New(t)
	server := startFakeFTPServer(t)
	go server.serve()

	store := progress.NewMemoryStore()
	client := NewClient(FTPDialer{Timeout: 5 * time.Second}, store)
	data := bytes.Repeat([]byte("0123456789"), 10000)
	source := Source{
		ID:        "/videos/holiday.mp4",
		Extension: "mp4",
		Reader:    bytes.NewReader(data),
		Size:      func() (int64, error) { return int64(len(data)), nil },
	}

	require.Nil(t, client.Transfer(context.Background(), server.destination(), source))
	select {
	case <-server.done:
	case <-time.After(5 * time.Second):
		t.Fatal("server didn't see QUIT")
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	assert.Equal("/uploads/98765.mp4", server.storedPath)
	assert.Equal(data, server.stored.Bytes())
	assert.Contains(server.commands, "TYPE I")
	assert.Contains(server.commands, "QUIT")

	// Stor reads in its own buffer size, so the last write is the last chunk that crossed a threshold, which may
	// be short of the total
	record, err := progress.Get(context.Background(), store, "/videos/holiday.mp4")
	require.Nil(t, err)
	require.True(t, record.IsSome())
	assert.Equal(progress.StatusProcessing, record.Value.Status)
	assert.Equal(int64(len(data)), record.Value.Total)
	assert.LessOrEqual(record.Value.Loaded, record.Value.Total)
	assert.LessOrEqual(100-record.Value.Percent(), int64(progress.Threshold))
}

func TestFTPDialer_BinaryModeRefused(t *testing.T) {
	assert := assert_.New(t)
	server := startFakeFTPServer(t)
	// Login's own TYPE I succeeds, the explicit one is refused
	server.typeReplies[2] = "504 type not supported"
	go server.serve()

	client := NewClient(FTPDialer{Timeout: 5 * time.Second}, progress.NewMemoryStore())
	source := Source{
		ID:        "/videos/holiday.mp4",
		Extension: "mp4",
		Reader:    strings.NewReader("video"),
		Size:      func() (int64, error) { return 5, nil },
	}
	err := client.Transfer(context.Background(), server.destination(), source)
	assert.ErrorIs(err, ErrBinaryMode)
	<-server.done

	server.mu.Lock()
	defer server.mu.Unlock()
	assert.Empty(server.storedPath)
	for _, command := range server.commands {
		assert.False(strings.HasPrefix(command, "STOR"), "no data should be sent")
	}
}

func TestFTPDialer_BinaryModeRefusedAtLogin(t *testing.T) {
	assert := assert_.New(t)
	server := startFakeFTPServer(t)
	server.typeReplies[1] = "504 type not supported"
	go server.serve()

	store := progress.NewMemoryStore()
	client := NewClient(FTPDialer{Timeout: 5 * time.Second}, store)
	source := Source{
		ID:        "/videos/holiday.mp4",
		Extension: "mp4",
		Reader:    strings.NewReader("video"),
		Size:      func() (int64, error) { return 5, nil },
	}
	err := client.Transfer(context.Background(), server.destination(), source)
	assert.ErrorIs(err, ErrBinaryMode)
	assert.NotErrorIs(err, ErrConnect)
	assert.Contains(err.Error(), "failed to set binary transfer mode")
	<-server.done

	server.mu.Lock()
	defer server.mu.Unlock()
	assert.Empty(server.storedPath)
	for _, command := range server.commands {
		assert.False(strings.HasPrefix(command, "STOR"), "no data should be sent")
	}
	record, err := progress.Get(context.Background(), store, "/videos/holiday.mp4")
	require.Nil(t, err)
	assert.Equal(progress.StatusError, record.Value.Status)
}

func TestFTPDialer_LoginRefused(t *testing.T) {
	assert := assert_.New(t)
	server := startFakeFTPServer(t)
	server.passReply = "530 login incorrect"
	go server.serve()

	client := NewClient(FTPDialer{Timeout: 5 * time.Second}, progress.NewMemoryStore())
	source := Source{
		ID:        "/videos/holiday.mp4",
		Extension: "mp4",
		Reader:    strings.NewReader("video"),
		Size:      func() (int64, error) { return 5, nil },
	}
	err := client.Transfer(context.Background(), server.destination(), source)
	assert.ErrorIs(err, ErrConnect)
	assert.NotErrorIs(err, ErrBinaryMode)
}

func TestFTPDialer_ConnectRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()

	_, err = FTPDialer{Timeout: time.Second}.Dial(context.Background(), Destination{Host: "127.0.0.1", Port: port})
	assert_.Error(t, err)
}

func TestControlWatch(t *testing.T) {
	assert := assert_.New(t)

	local, remote := net.Pipe()
	watch := newControlWatch()
	conn := watch.wrap(local)

	// The peer going away is reported once
	_ = remote.Close()
	_, err := conn.Read(make([]byte, 1))
	assert.Error(err)
	_, err = conn.Write([]byte("NOOP\r\n"))
	assert.Error(err)
	select {
	case reported := <-watch.errs:
		assert.Error(reported)
	default:
		assert.Fail("expected a control error")
	}
	select {
	case <-watch.errs:
		assert.Fail("expected only one control error")
	default:
	}

	// Errors after our own close are expected, and not reported
	local2, remote2 := net.Pipe()
	watch2 := newControlWatch()
	conn2 := watch2.wrap(local2)
	watch2.close()
	_ = remote2.Close()
	_, err = conn2.Read(make([]byte, 1))
	assert.Error(err)
	select {
	case <-watch2.errs:
		assert.Fail("expected no control error after close")
	default:
	}
}

func TestControlWatch_LastVerb(t *testing.T) {
	assert := assert_.New(t)
	watch := newControlWatch()
	assert.Equal("", watch.lastVerb())

	watch.sent([]byte("USER u1234\r\n"))
	assert.Equal("USER", watch.lastVerb())
	watch.sent([]byte("type I\r\n"))
	assert.Equal("TYPE", watch.lastVerb())
	watch.sent([]byte("QUIT\r\n"))
	assert.Equal("QUIT", watch.lastVerb())
	// Nothing recognisable keeps the previous verb
	watch.sent([]byte("\r\n"))
	assert.Equal("QUIT", watch.lastVerb())
}
