// Package ssr calls the external server-side rendering service.
//
// The service takes POST /render with {"component", "props"} and answers
// {"html", "head"}. Every call is bounded by a timeout and made once; there
// is no retry or backoff. Callers that only want the markup when it is
// available use [Client.TryRender].
package ssr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/nadi-go/internal/xerrors"
)

const (
	DefaultURL     = "http://localhost:13714"
	DefaultTimeout = 2 * time.Second

	// responses beyond this are treated as malformed
	maxResponseBytes = 16 << 20
)

var (
	ErrStatus    = errors.New("ssr service returned non-2xx status")
	ErrMalformed = errors.New("ssr service returned a malformed response")
)

// Result is the rendered markup for one component.
type Result struct {
	HTML string
	Head string
}

type Options struct {
	// BaseURL of the SSR service, without the /render path.
	BaseURL string
	// Timeout bounds the whole call including reading the body.
	Timeout time.Duration
	// Transport defaults to http.DefaultTransport; it is always wrapped for tracing.
	Transport http.RoundTripper
}

type Client struct {
	endpoint string
	timeout  time.Duration
	http     *http.Client
}

func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	rt := opts.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &Client{
		endpoint: base + "/render",
		timeout:  opts.Timeout,
		http: &http.Client{
			Transport: otelhttp.NewTransport(rt,
				otelhttp.WithSpanNameFormatter(func(string, *http.Request) string { return "ssr.render" }),
			),
			// the service has no reason to redirect us
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
}

// Endpoint is the full URL requests are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

type renderRequest struct {
	Component string         `json:"component"`
	Props     map[string]any `json:"props"`
}

type renderResponse struct {
	HTML *string `json:"html"`
	Head *string `json:"head"`
}

// Render asks the service to render component with props.
func (c *Client) Render(ctx context.Context, component string, props map[string]any) (Result, error) {
	if props == nil {
		props = map[string]any{}
	}
	body, err := json.Marshal(renderRequest{Component: component, Props: props})
	if err != nil {
		return Result{}, xerrors.Wrap(err, "encode ssr request")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, xerrors.Wrap(err, "build ssr request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, xerrors.Wrap(err, "ssr request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Result{}, xerrors.Wrapf(ErrStatus, "status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return Result{}, xerrors.Wrap(err, "read ssr response")
	}
	if len(raw) > maxResponseBytes {
		return Result{}, xerrors.Wrap(ErrMalformed, "response too large")
	}

	var out renderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, xerrors.Wrapf(ErrMalformed, "decode: %v", err)
	}
	if out.HTML == nil || out.Head == nil {
		return Result{}, xerrors.Wrap(ErrMalformed, "missing html or head")
	}
	return Result{HTML: *out.HTML, Head: *out.Head}, nil
}

// TryRender is Render for callers that fall back to client-side rendering:
// ok is false on any failure and the error is dropped.
func (c *Client) TryRender(ctx context.Context, component string, props map[string]any) (Result, bool) {
	res, err := c.Render(ctx, component, props)
	if err != nil {
		return Result{}, false
	}
	return res, true
}
