// Package pages mounts declaratively configured routes. Each page maps a
// chi route pattern to a component with static props; route parameters
// are added to the props under "params".
//
//	pages:
//	  - path: /users/{id}
//	    component: Users/Show
//	    props: {tab: profile}
//	    ssr: false
package pages

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/keithlinneman/nadi-go/internal/httpmw"
	"github.com/keithlinneman/nadi-go/internal/nadihttp"
	"github.com/keithlinneman/nadi-go/internal/render"
	"github.com/keithlinneman/nadi-go/internal/xerrors"
)

type Page struct {
	Path      string         `yaml:"path"`
	Component string         `yaml:"component"`
	Props     map[string]any `yaml:"props"`
	Template  string         `yaml:"template"`
	// SSR false opts this page out of server-side rendering.
	SSR *bool `yaml:"ssr"`
}

type file struct {
	Pages []Page `yaml:"pages"`
}

// Load reads a pages file. An empty path yields no pages.
func Load(path string) ([]Page, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read pages file %s", path)
	}
	pages, err := Parse(data)
	if err != nil {
		return nil, xerrors.Wrapf(err, "pages file %s", path)
	}
	return pages, nil
}

func Parse(data []byte) ([]Page, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, xerrors.Wrap(err, "decode pages")
	}
	if err := Validate(f.Pages); err != nil {
		return nil, err
	}
	return f.Pages, nil
}

func Validate(pages []Page) error {
	var errs []error
	seen := make(map[string]bool, len(pages))
	for i, p := range pages {
		switch {
		case !strings.HasPrefix(p.Path, "/"):
			errs = append(errs, fmt.Errorf("page %d: path %q must start with /", i, p.Path))
		case seen[p.Path]:
			errs = append(errs, fmt.Errorf("page %d: duplicate path %q", i, p.Path))
		}
		seen[p.Path] = true
		if strings.TrimSpace(p.Component) == "" {
			errs = append(errs, fmt.Errorf("page %d (%s): component is required", i, p.Path))
		}
	}
	return errors.Join(errs...)
}

// Register mounts a GET route per page.
func Register(r chi.Router, h *nadihttp.Handler, pages []Page) {
	for _, p := range pages {
		opts := render.Options{Template: p.Template, SSR: p.SSR}
		r.With(httpmw.Scope("page:"+p.Component)).
			Get(p.Path, h.Page(p.Component, p.propsFunc(), opts))
	}
}

func (p Page) propsFunc() nadihttp.PropsFunc {
	static := p.Props
	return func(r *http.Request) map[string]any {
		props := make(map[string]any, len(static)+1)
		for k, v := range static {
			props[k] = v
		}
		if rc := chi.RouteContext(r.Context()); rc != nil && len(rc.URLParams.Keys) > 0 {
			params := make(map[string]any, len(rc.URLParams.Keys))
			for i, k := range rc.URLParams.Keys {
				if k == "*" {
					continue
				}
				params[k] = rc.URLParams.Values[i]
			}
			if len(params) > 0 {
				props["params"] = params
			}
		}
		return props
	}
}
