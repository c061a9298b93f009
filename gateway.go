package video_uploader

import (
	"context"
	"encoding/json"
	"net/url"
)

// A Gateway performs authenticated requests against the hosting platform's REST API. form is sent
// form-encoded when non-nil. Authentication, and any retries, are the Gateway's business.
type Gateway interface {
	AuthRequest(ctx context.Context, method, path string, form url.Values) (json.RawMessage, error)
}
