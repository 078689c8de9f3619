package nadihttp

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"

	"github.com/keithlinneman/nadi-go/internal/log"
	"github.com/keithlinneman/nadi-go/internal/render"
)

// pageData is what page templates see. The markup fields come from the
// manifest and the SSR service and are inserted unescaped.
type pageData struct {
	Component string
	Props     template.JS
	Scripts   template.HTML
	Styles    template.HTML
	HTML      template.HTML
	Head      template.HTML
}

type Responder struct {
	templates *Templates
}

func NewResponder(t *Templates) *Responder { return &Responder{templates: t} }

// Write sends out to w. The same URL answers JSON or HTML depending on
// X-Requested-With, so both carry Vary on that header.
func (rs *Responder) Write(w http.ResponseWriter, r *http.Request, out render.Output) {
	w.Header().Add("Vary", render.XHRHeader)
	switch o := out.(type) {
	case *render.JSONPayload:
		rs.writeJSON(w, r, o)
	case *render.HTMLContext:
		rs.writeHTML(w, r, o)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (rs *Responder) writeJSON(w http.ResponseWriter, r *http.Request, p *render.JSONPayload) {
	body, err := json.Marshal(p)
	if err != nil {
		ctx := r.Context()
		log.FromContext(ctx).Error(ctx, err, "encode nadi payload", "component", p.Component)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (rs *Responder) writeHTML(w http.ResponseWriter, r *http.Request, c *render.HTMLContext) {
	body, err := rs.templates.Execute(c.Template, pageData{
		Component: c.Component,
		Props:     template.JS(c.PropsJSON),
		Scripts:   template.HTML(c.Scripts),
		Styles:    template.HTML(c.Styles),
		HTML:      template.HTML(c.HTML),
		Head:      template.HTML(c.Head),
	})
	if err != nil {
		ctx := r.Context()
		log.FromContext(ctx).Error(ctx, err, "render page template",
			"template", c.Template,
			"component", c.Component,
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
