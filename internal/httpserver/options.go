package httpserver

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/nadi-go/internal/csrf"
	"github.com/keithlinneman/nadi-go/internal/health"
	"github.com/keithlinneman/nadi-go/internal/httpmw"
	"github.com/keithlinneman/nadi-go/internal/log"
	"github.com/keithlinneman/nadi-go/internal/nadihttp"
	"github.com/keithlinneman/nadi-go/internal/pages"
)

type Options struct {
	Logger       log.Logger
	Port         int
	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	RateLimitMW  func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions
	Security     httpmw.SecurityOptions
	Health       health.Probe
	Readiness    health.Probe

	// CSRF issues tokens for X-Nadi requests and guards unsafe methods.
	// nil disables both.
	CSRF *csrf.Provider

	// Static is served under /static/; nil disables it.
	Static fs.FS

	Nadi  *nadihttp.Handler
	Pages []pages.Page
	// Routes mounts extra application routes on the router.
	Routes func(r chi.Router, nadi *nadihttp.Handler)
}
