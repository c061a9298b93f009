package video_uploader

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/alanbriolat/video-uploader/generic"
)

var (
	ErrInvalidProtect = errors.New("invalid protection level")
)

type Protect string

const (
	ProtectPublic  Protect = "public"
	ProtectPrivate Protect = "private"

	DefaultProtect = ProtectPrivate
)

var protectLevels = generic.NewSet(ProtectPublic, ProtectPrivate)

// UploadOptions is the metadata sent with the initiate request. Empty fields are left out.
type UploadOptions struct {
	Title       string
	Description string
	// Protect defaults to "private".
	Protect Protect
}

func (o UploadOptions) Validate() error {
	if o.Protect != "" && !protectLevels.Contains(o.Protect) {
		return fmt.Errorf("%w %q, expected %q or %q", ErrInvalidProtect, o.Protect, ProtectPublic, ProtectPrivate)
	}
	return nil
}

// Form encodes the options for the initiate request.
func (o UploadOptions) Form() url.Values {
	form := url.Values{}
	if o.Title != "" {
		form.Set("title", o.Title)
	}
	if o.Description != "" {
		form.Set("description", o.Description)
	}
	if o.Protect != "" {
		form.Set("protect", string(o.Protect))
	} else {
		form.Set("protect", string(DefaultProtect))
	}
	return form
}
