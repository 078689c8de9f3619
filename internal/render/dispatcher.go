package render

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/nadi-go/internal/assettags"
	"github.com/keithlinneman/nadi-go/internal/manifest"
	"github.com/keithlinneman/nadi-go/internal/ssr"
)

const (
	DefaultTemplate = "nadi/app.html"

	XHRHeader = "X-Requested-With"
	XHRValue  = "XMLHttpRequest"

	KindJSON = "json"
	KindHTML = "html"

	SSROK       = "ok"
	SSRFailed   = "error"
	SSRDisabled = "disabled"
	SSROptOut   = "opt_out"
)

// RequestMeta is what the dispatcher needs from the inbound request.
type RequestMeta interface {
	Header(name string) string
	Path() string
}

// SSRRenderer renders a component remotely. *ssr.Client implements it.
type SSRRenderer interface {
	Render(ctx context.Context, component string, props map[string]any) (ssr.Result, error)
}

// Config is read once at startup.
type Config struct {
	SSREnabled bool
	// Manifest is loaded from here once at construction; the version is
	// fingerprinted from here on every programmatic request.
	Manifest manifest.Source
}

type Dispatcher struct {
	ssrEnabled bool
	source     manifest.Source
	manifest   *manifest.Manifest
	ssr        SSRRenderer

	// tags depend only on the manifest, which never changes
	scripts string
	styles  string

	onRender func(kind, component string)
	onSSR    func(ctx context.Context, component, result string, d time.Duration, err error)
}

type Option func(*Dispatcher)

// WithOnRender is called once per Render with the chosen output kind.
func WithOnRender(fn func(kind, component string)) Option {
	return func(d *Dispatcher) { d.onRender = fn }
}

// WithOnSSR is called for every full-page render with the SSR outcome:
// SSROK, SSRFailed (err set), SSRDisabled or SSROptOut. Duration is zero
// when no call was made.
func WithOnSSR(fn func(ctx context.Context, component, result string, d time.Duration, err error)) Option {
	return func(d *Dispatcher) { d.onSSR = fn }
}

// New loads the manifest from cfg.Manifest. A nil renderer disables SSR.
func New(ctx context.Context, cfg Config, renderer SSRRenderer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ssrEnabled: cfg.SSREnabled,
		source:     cfg.Manifest,
		manifest:   manifest.Load(ctx, cfg.Manifest),
		ssr:        renderer,
	}
	d.scripts = assettags.Scripts(d.manifest)
	d.styles = assettags.Styles(d.manifest)
	for _, o := range opts {
		o(d)
	}
	return d
}

// Manifest returns the manifest loaded at construction.
func (d *Dispatcher) Manifest() *manifest.Manifest { return d.manifest }

// Version fingerprints the manifest source as it is now.
func (d *Dispatcher) Version(ctx context.Context) string {
	return manifest.Fingerprint(ctx, d.source)
}

// Render produces the output for one request. It never fails.
func (d *Dispatcher) Render(ctx context.Context, req RequestMeta, component string, props map[string]any, opts Options) Output {
	if props == nil {
		props = map[string]any{}
	}

	ctx, span := otel.Tracer("nadi/render").Start(ctx, "nadi.render",
		trace.WithAttributes(attribute.String("nadi.component", component)),
	)
	defer span.End()

	if req != nil && req.Header(XHRHeader) == XHRValue {
		span.SetAttributes(attribute.String("nadi.kind", KindJSON))
		d.rendered(KindJSON, component)
		return &JSONPayload{
			Component: component,
			Props:     props,
			URL:       req.Path(),
			Version:   d.Version(ctx),
		}
	}

	span.SetAttributes(attribute.String("nadi.kind", KindHTML))
	out := &HTMLContext{
		Component: component,
		PropsJSON: propsJSON(props),
		Scripts:   d.scripts,
		Styles:    d.styles,
		Template:  opts.template(),
	}

	switch {
	case !d.ssrEnabled || d.ssr == nil:
		d.ssrOutcome(ctx, component, SSRDisabled, 0, nil)
	case !opts.ssrAllowed():
		d.ssrOutcome(ctx, component, SSROptOut, 0, nil)
	default:
		start := time.Now()
		res, err := d.ssr.Render(ctx, component, props)
		took := time.Since(start)
		if err != nil {
			// client-side rendering fills the empty placeholders
			span.SetAttributes(attribute.Bool("nadi.ssr.fallback", true))
			d.ssrOutcome(ctx, component, SSRFailed, took, err)
			break
		}
		out.HTML, out.Head = res.HTML, res.Head
		d.ssrOutcome(ctx, component, SSROK, took, nil)
	}

	d.rendered(KindHTML, component)
	return out
}

func (d *Dispatcher) rendered(kind, component string) {
	if d.onRender != nil {
		d.onRender(kind, component)
	}
}

func (d *Dispatcher) ssrOutcome(ctx context.Context, component, result string, took time.Duration, err error) {
	if d.onSSR != nil {
		d.onSSR(ctx, component, result, took, err)
	}
}

// propsJSON falls back to "{}" for values encoding/json cannot represent
// (channels, funcs, NaN) so the page still boots.
func propsJSON(props map[string]any) string {
	b, err := json.Marshal(props)
	if err != nil {
		return "{}"
	}
	return string(b)
}
