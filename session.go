package video_uploader

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-uploader/transfer"
)

type SessionStatus string

const (
	SessionStatusInitiated    SessionStatus = "initiated"
	SessionStatusTransferring SessionStatus = "transferring"
	SessionStatusReady        SessionStatus = "ready"
	SessionStatusError        SessionStatus = "error"
)

// File is the video to upload.
type File struct {
	// OriginalName is only used for its extension.
	OriginalName string
	// Path identifies the upload in the progress store and is used to look up the size.
	Path   string
	Stream io.Reader
}

// Extension is everything after the last "." in OriginalName, or all of it if there is no ".".
func (f File) Extension() string {
	return f.OriginalName[strings.LastIndex(f.OriginalName, ".")+1:]
}

// Session is the state of one Upload call. It is never persisted.
type Session struct {
	ID          string
	ChannelID   int64
	VideoID     int64
	Destination transfer.Destination
	Extension   string
	Status      SessionStatus
}

func newSession(channelID int64, file File) *Session {
	return &Session{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		Extension: file.Extension(),
	}
}

func (s *Session) transition(log *zap.SugaredLogger, status SessionStatus) {
	log.Debugw("session status changed", "from", s.Status, "to", status)
	s.Status = status
}

func (s *Session) String() string {
	return fmt.Sprintf("Session{ID:\"%s\", ChannelID:%d, VideoID:%d, Status:\"%s\"}", s.ID, s.ChannelID, s.VideoID, s.Status)
}
