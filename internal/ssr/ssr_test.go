package ssr

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newSSRServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

// unusedURL returns a base URL nothing is listening on.
func unusedURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return "http://" + addr
}

func TestNew_Defaults(t *testing.T) {
	c := New(Options{})
	if c.Endpoint() != "http://localhost:13714/render" {
		t.Fatalf("Endpoint = %q", c.Endpoint())
	}
	if c.timeout != 2*time.Second {
		t.Fatalf("timeout = %v, want 2s", c.timeout)
	}

	c = New(Options{BaseURL: "http://ssr:9000/"})
	if c.Endpoint() != "http://ssr:9000/render" {
		t.Fatalf("Endpoint = %q, trailing slash should be trimmed", c.Endpoint())
	}
}

func TestRender_Success(t *testing.T) {
	var got renderRequest
	var gotPath, gotMethod, gotCT string
	srv := newSSRServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod, gotCT = r.URL.Path, r.Method, r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"html":"<div>x</div>","head":"<title>t</title>"}`))
	})

	c := New(Options{BaseURL: srv.URL})
	res, err := c.Render(context.Background(), "Home", map[string]any{"user": "ada"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.HTML != "<div>x</div>" || res.Head != "<title>t</title>" {
		t.Fatalf("result = %+v", res)
	}
	if gotMethod != http.MethodPost || gotPath != "/render" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotCT != "application/json" {
		t.Fatalf("Content-Type = %q", gotCT)
	}
	if got.Component != "Home" || got.Props["user"] != "ada" {
		t.Fatalf("body = %+v", got)
	}
}

func TestRender_NilPropsSentAsObject(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := newSSRServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"html":"","head":""}`))
	})

	if _, err := New(Options{BaseURL: srv.URL}).Render(context.Background(), "Empty", nil); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if string(raw["props"]) != "{}" {
		t.Fatalf("props = %s, want {}", raw["props"])
	}
}

func TestRender_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"html":"x","head":"y"}`, ErrStatus},
		{"not json", http.StatusOK, `<html>oops</html>`, ErrMalformed},
		{"array", http.StatusOK, `["html"]`, ErrMalformed},
		{"null", http.StatusOK, `null`, ErrMalformed},
		{"missing head", http.StatusOK, `{"html":"<p>x</p>"}`, ErrMalformed},
		{"missing html", http.StatusOK, `{"head":"<title>t</title>"}`, ErrMalformed},
		{"html not string", http.StatusOK, `{"html":5,"head":""}`, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSSRServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			c := New(Options{BaseURL: srv.URL})

			_, err := c.Render(context.Background(), "Home", nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}

			res, ok := c.TryRender(context.Background(), "Home", nil)
			if ok || res != (Result{}) {
				t.Fatalf("TryRender = %+v, %v; want absent", res, ok)
			}
		})
	}
}

func TestRender_Unreachable(t *testing.T) {
	c := New(Options{BaseURL: unusedURL(t), Timeout: 500 * time.Millisecond})

	if _, err := c.Render(context.Background(), "Home", nil); err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
	if _, ok := c.TryRender(context.Background(), "Home", nil); ok {
		t.Fatal("TryRender should report absent")
	}
}

func TestRender_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := newSSRServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	c := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := c.Render(context.Background(), "Slow", nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Render took %v, timeout not applied", elapsed)
	}
}

func TestRender_CallerCancel(t *testing.T) {
	var hits atomic.Int32
	srv := newSSRServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"html":"","head":""}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := New(Options{BaseURL: srv.URL}).TryRender(ctx, "Home", nil); ok {
		t.Fatal("canceled context should not render")
	}
	if hits.Load() != 0 {
		t.Fatalf("server hit %d times with canceled context", hits.Load())
	}
}
