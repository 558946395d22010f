package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "findthem/pkg/domain"
	request "findthem/pkg/platform/middleware/request"
	"findthem/pkg/requestcontext"
)

// SessionAuthenticator resolves a bearer token to the identity it was issued
// for. Expired and revoked tokens are errors.
type SessionAuthenticator interface {
	CurrentUser(ctx context.Context, token string) (id.UserID, error)
}

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) id.UserID {
	return requestcontext.UserID(ctx)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid session and stores the
// caller's user id and token in the request context.
func RequireAuth(authenticator SessionAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := BearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			userID, err := authenticator.CurrentUser(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithUserID(ctx, userID)
			ctx = requestcontext.WithSessionToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the caller's identity when a valid token is present
// and otherwise lets the request through anonymously.
func OptionalAuth(authenticator SessionAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if token, ok := BearerToken(r); ok {
				userID, err := authenticator.CurrentUser(ctx, token)
				if err == nil {
					ctx = requestcontext.WithUserID(ctx, userID)
					ctx = requestcontext.WithSessionToken(ctx, token)
				} else {
					logger.DebugContext(ctx, "ignoring invalid optional token",
						"error", err,
						"request_id", request.GetRequestID(ctx),
					)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
