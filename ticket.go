package video_uploader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/alanbriolat/video-uploader/transfer"
)

var ErrInvalidTicket = errors.New("invalid initiate response")

// Ticket is the initiate response: a pending video and single-use FTP credentials for it.
type Ticket struct {
	VideoID  Int64  `json:"videoId"`
	Host     string `json:"host"`
	User     string `json:"user"`
	Password string `json:"password"`
	Port     Int64  `json:"port"`
	Path     string `json:"path"`
}

func (t Ticket) Destination() transfer.Destination {
	return transfer.Destination{
		Host:     t.Host,
		User:     t.User,
		Password: t.Password,
		Port:     int(t.Port),
		Path:     t.Path,
	}
}

// Int64 accepts a JSON number or a string holding one, since the API isn't consistent about which it sends.
type Int64 int64

func (i *Int64) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*i = 0
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", data, err)
	}
	*i = Int64(v)
	return nil
}

// Completion identifies an upload the platform has been told is ready.
type Completion struct {
	ChannelID int64
	VideoID   int64
}

func decodeTicket(raw json.RawMessage) (*Ticket, error) {
	var ticket Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return nil, fmt.Errorf("failed to parse initiate response: %w", err)
	}
	if ticket.VideoID == 0 {
		return nil, fmt.Errorf("%w: missing videoId", ErrInvalidTicket)
	}
	if ticket.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidTicket)
	}
	return &ticket, nil
}
