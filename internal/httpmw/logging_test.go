package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestWithLogger_EnrichesContextLogger(t *testing.T) {
	spy := newSpyLogger()
	h := RequestID("")(ClientIP(ClientIPOptions{})(WithLogger(spy)(AccessLog(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte("ok"))
		}),
	))))

	req := httptest.NewRequest(http.MethodPost, "/users/7", nil)
	req.RemoteAddr = "203.0.113.5:999"
	req.Header.Set("X-Request-Id", "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	infos := spy.infos()
	if len(infos) != 1 {
		t.Fatalf("got %d access log lines, want 1", len(infos))
	}
	e := infos[0]
	if e.msg != "http request" {
		t.Fatalf("msg = %q", e.msg)
	}
	checks := map[string]any{
		"request_id":          "req-1",
		"client.address":      "203.0.113.5",
		"http.request.method": http.MethodPost,
		"url.path":            "/users/7",
	}
	for k, want := range checks {
		if got := field(e.fields, k); got != want {
			t.Errorf("%s = %v, want %v", k, got, want)
		}
	}
	if got := field(e.kv, "http.response.status_code"); got != http.StatusAccepted {
		t.Errorf("status = %v, want 202", got)
	}
	if got := field(e.kv, "http.response.body.size"); got != int64(2) {
		t.Errorf("body size = %v, want 2", got)
	}
}

func TestAccessLog_SkipsAssetsAndHealth(t *testing.T) {
	for _, p := range []string{"/static/build/main.js", "/static/src/main.ts", "/-/healthy", "/favicon.ico"} {
		spy := newSpyLogger()
		h := WithLogger(spy)(AccessLog(http.NotFoundHandler()))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
		if n := len(spy.infos()); n != 0 {
			t.Errorf("%s: logged %d lines, want 0", p, n)
		}
	}
}

func TestAccessLog_DefaultStatus(t *testing.T) {
	spy := newSpyLogger()
	h := WithLogger(spy)(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	infos := spy.infos()
	if len(infos) != 1 {
		t.Fatalf("got %d lines", len(infos))
	}
	if got := field(infos[0].kv, "http.response.status_code"); got != http.StatusOK {
		t.Fatalf("status = %v, want 200", got)
	}
}

func TestRoutePattern(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		got = RoutePattern(r)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/42", nil))
	if got != "/users/{id}" {
		t.Fatalf("route = %q, want /users/{id}", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/raw/path", nil)
	if got := RoutePattern(req); got != "/raw/path" {
		t.Fatalf("route without chi = %q", got)
	}
}

func TestScope(t *testing.T) {
	spy := newSpyLogger()
	h := WithLogger(spy)(Scope("pages")(AccessLog(http.NotFoundHandler())))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	infos := spy.infos()
	if len(infos) != 1 {
		t.Fatalf("got %d lines", len(infos))
	}
	if got := field(infos[0].fields, "handler"); got != "pages" {
		t.Fatalf("handler = %v, want pages", got)
	}
}
