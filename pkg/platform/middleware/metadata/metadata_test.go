package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"

	"findthem/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded headers are ignored", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1", "X-Real-IP": "198.51.100.4"}, "10.0.0.2:1234", "10.0.0.2"},
		{"ipv4 remote addr", nil, "192.0.2.10:5555", "192.0.2.10"},
		{"ipv6 remote addr", nil, "[::1]:8080", "::1"},
		{"bare ipv4 from RealIP", nil, "203.0.113.7", "203.0.113.7"},
		{"bare ipv6 from RealIP", nil, "2001:db8::1", "2001:db8::1"},
		{"empty remote addr", nil, "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(req))
		})
	}
}

func TestClientMetadata(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/sightings", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("User-Agent", "Mozilla/5.0")

	ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "192.0.2.10", requestcontext.ClientIP(r.Context()))
		assert.Equal(t, "Mozilla/5.0", requestcontext.UserAgent(r.Context()))
	})).ServeHTTP(httptest.NewRecorder(), req)
}

func TestClientMetadataBehindRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/sightings", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	middleware.RealIP(ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "203.0.113.7", requestcontext.ClientIP(r.Context()))
	}))).ServeHTTP(httptest.NewRecorder(), req)
}
