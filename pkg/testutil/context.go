package testutil

import (
	"net/http"
	"time"

	id "findthem/pkg/domain"
	"findthem/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context, as the auth middleware
// would for an authenticated request.
func WithUserID(req *http.Request, userID id.UserID) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

// WithRequestTime pins the request clock.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithClientMetadata sets client IP and User-Agent as the metadata middleware would.
func WithClientMetadata(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}
