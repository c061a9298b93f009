package video_uploader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/alanbriolat/video-uploader/generic"
	"github.com/alanbriolat/video-uploader/progress"
	"github.com/alanbriolat/video-uploader/transfer"
)

const (
	// DefaultCompleteStatus is sent by Complete when no status is given.
	DefaultCompleteStatus = "ready"

	uploadType = "videoupload-ftp"
)

// Transferrer moves a source's bytes to an FTP destination; *transfer.Client is the real one.
type Transferrer interface {
	Transfer(ctx context.Context, dest transfer.Destination, source transfer.Source) error
}

// StatFS looks up file sizes. Any billy.Filesystem will do, as will osfs.Default.
type StatFS interface {
	Stat(filename string) (os.FileInfo, error)
}

var (
	_ StatFS = osfs.Default
	_ StatFS = billy.Filesystem(nil)
)

// Uploader drives the upload protocol: Initiate, then Transfer, then Complete.
type Uploader struct {
	gateway    Gateway
	transfer   Transferrer
	filesystem StatFS
}

type UploaderOption func(*uploaderConfig)

type uploaderConfig struct {
	store      progress.Store
	dialer     transfer.Dialer
	transfer   Transferrer
	filesystem StatFS
}

// WithProgressStore sets where transfer progress is published. Defaults to a new MemoryStore.
func WithProgressStore(store progress.Store) UploaderOption {
	return func(c *uploaderConfig) {
		c.store = store
	}
}

// WithDialer sets how FTP sessions are opened. Defaults to transfer.FTPDialer{}.
func WithDialer(dialer transfer.Dialer) UploaderOption {
	return func(c *uploaderConfig) {
		c.dialer = dialer
	}
}

// WithTransferrer replaces the transfer stage entirely; WithProgressStore and WithDialer are then ignored.
func WithTransferrer(t Transferrer) UploaderOption {
	return func(c *uploaderConfig) {
		c.transfer = t
	}
}

// WithFilesystem sets where File.Path is looked up for its size. Defaults to the OS filesystem.
func WithFilesystem(fs StatFS) UploaderOption {
	return func(c *uploaderConfig) {
		c.filesystem = fs
	}
}

func New(gateway Gateway, opts ...UploaderOption) *Uploader {
	config := uploaderConfig{
		dialer:     transfer.FTPDialer{},
		filesystem: osfs.Default,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.store == nil {
		config.store = progress.NewMemoryStore()
	}
	if config.transfer == nil {
		config.transfer = transfer.NewClient(config.dialer, config.store)
	}
	return &Uploader{
		gateway:    gateway,
		transfer:   config.transfer,
		filesystem: config.filesystem,
	}
}

// Upload sends file to a channel as a new video. The first stage to fail ends the upload and its error is returned
// as-is. Nothing is rolled back: a failed transfer leaves the initiated video pending on the platform, so once
// Initiate has succeeded the Session is returned even on failure, in SessionStatusError with its VideoID set.
func (u *Uploader) Upload(ctx context.Context, channelID int64, file File, opts UploadOptions) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	session := newSession(channelID, file)
	log := Logger(ctx).Sugar().Named("upload").With("session_id", session.ID, "upload_id", file.Path)

	log.Infof("initiating upload to channel %d", channelID)
	ticket, err := u.Initiate(ctx, channelID, opts)
	if err != nil {
		log.Errorf("initiate failed: %v", err)
		return nil, err
	}
	session.VideoID = int64(ticket.VideoID)
	session.Destination = ticket.Destination()
	session.transition(log, SessionStatusInitiated)

	session.transition(log, SessionStatusTransferring)
	log.Infof("transferring video %d to %s", session.VideoID, session.Destination.Host)
	source := transfer.Source{
		ID:        file.Path,
		Extension: session.Extension,
		Reader:    file.Stream,
		Size:      u.sizeOf(file.Path),
	}
	if err := u.transfer.Transfer(ctx, session.Destination, source); err != nil {
		session.transition(log, SessionStatusError)
		log.Errorf("transfer failed: %v", err)
		return session, err
	}

	log.Infof("completing video %d", session.VideoID)
	if _, err := u.Complete(ctx, channelID, session.VideoID, generic.Some(DefaultCompleteStatus)); err != nil {
		session.transition(log, SessionStatusError)
		log.Errorf("complete failed: %v", err)
		return session, err
	}
	session.transition(log, SessionStatusReady)
	log.Infof("upload complete")
	return session, nil
}

// Initiate asks the platform for a new pending video on channelID and credentials to upload it.
func (u *Uploader) Initiate(ctx context.Context, channelID int64, opts UploadOptions) (*Ticket, error) {
	path := fmt.Sprintf("/channels/%d/uploads.json?type=%s", channelID, uploadType)
	raw, err := u.gateway.AuthRequest(ctx, http.MethodPost, path, opts.Form())
	if err != nil {
		return nil, err
	}
	return decodeTicket(raw)
}

// Complete tells the platform the upload's bytes have arrived. status None means DefaultCompleteStatus; any given
// value, even "", is sent as it is.
func (u *Uploader) Complete(ctx context.Context, channelID, videoID int64, status generic.Option[string]) (*Completion, error) {
	form := url.Values{}
	form.Set("status", status.UnwrapOr(DefaultCompleteStatus))
	path := fmt.Sprintf("/channels/%d/uploads/%d.json", channelID, videoID)
	if _, err := u.gateway.AuthRequest(ctx, http.MethodPut, path, form); err != nil {
		return nil, err
	}
	return &Completion{ChannelID: channelID, VideoID: videoID}, nil
}

func (u *Uploader) sizeOf(path string) func() (int64, error) {
	return func() (int64, error) {
		if info, err := u.filesystem.Stat(path); err != nil {
			return 0, err
		} else {
			return info.Size(), nil
		}
	}
}

var _ Transferrer = &transfer.Client{}
