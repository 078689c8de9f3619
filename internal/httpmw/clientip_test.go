package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name        string
		remote      string
		xff         string
		hops        int
		want        string
		wantXFFKept bool
	}{
		{"public peer ignores xff", "203.0.113.5:1234", "198.51.100.1", 1, "203.0.113.5", false},
		{"private peer no hops", "10.0.0.2:1234", "198.51.100.1", 0, "10.0.0.2", false},
		{"single alb", "10.0.0.2:1234", "198.51.100.9, 198.51.100.1", 1, "198.51.100.1", true},
		{"cdn and alb", "10.0.0.2:1234", "198.51.100.9, 198.51.100.1", 2, "198.51.100.9", true},
		{"too few entries", "10.0.0.2:1234", "198.51.100.1", 3, "10.0.0.2", false},
		{"garbage entry", "10.0.0.2:1234", "not-an-ip", 1, "10.0.0.2", true},
		{"no xff", "10.0.0.2:1234", "", 1, "10.0.0.2", false},
		{"no port", "203.0.113.5", "", 0, "203.0.113.5", false},
		{"unparseable", "bogus", "", 0, "0.0.0.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			var xffKept bool
			h := ClientIP(ClientIPOptions{TrustedHops: tt.hops})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIPFromContext(r.Context())
				xffKept = r.Header.Get("X-Forwarded-For") != ""
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Fatalf("client ip = %q, want %q", got, tt.want)
			}
			if xffKept != tt.wantXFFKept {
				t.Fatalf("xff kept = %v, want %v", xffKept, tt.wantXFFKept)
			}
		})
	}
}
