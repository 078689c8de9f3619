package nadihttp

import (
	"context"
	"net/http"

	"github.com/keithlinneman/nadi-go/internal/render"
)

// PropsFunc builds a page's props for one request.
type PropsFunc func(r *http.Request) map[string]any

// Renderer is satisfied by *render.Dispatcher.
type Renderer interface {
	Render(ctx context.Context, req render.RequestMeta, component string, props map[string]any, opts render.Options) render.Output
}

type Handler struct {
	renderer  Renderer
	responder *Responder
}

func NewHandler(renderer Renderer, responder *Responder) *Handler {
	return &Handler{renderer: renderer, responder: responder}
}

// Render renders component for r and writes the result.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request, component string, props map[string]any, opts render.Options) {
	out := h.renderer.Render(r.Context(), FromHTTP(r), component, props, opts)
	h.responder.Write(w, r, out)
}

// Page always renders component; props may be nil.
func (h *Handler) Page(component string, props PropsFunc, opts render.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p map[string]any
		if props != nil {
			p = props(r)
		}
		h.Render(w, r, component, p, opts)
	}
}
