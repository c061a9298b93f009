package transfer

import (
	"fmt"
	"io"
	"net"
	"strconv"
)

// Destination is where a single upload goes. The credentials are only valid for one session.
type Destination struct {
	Host     string
	User     string
	Password string
	Port     int
	Path     string
}

func (d Destination) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// String omits the password.
func (d Destination) String() string {
	return fmt.Sprintf("ftp://%s@%s/%s", d.User, d.Address(), d.Path)
}

// Source is the byte stream for one upload.
type Source struct {
	// ID is the key for progress records, conventionally the local file path.
	ID string
	// Extension is appended to Destination.Path, after a ".".
	Extension string
	Reader    io.Reader
	// Size looks up the total byte count, independently of the stream.
	Size func() (int64, error)
}

func (s Source) RemotePath(dest Destination) string {
	return dest.Path + "." + s.Extension
}
