package nadihttp

import "net/http"

// Request adapts *http.Request to render.RequestMeta.
type Request struct{ r *http.Request }

func FromHTTP(r *http.Request) Request { return Request{r: r} }

func (q Request) Header(name string) string { return q.r.Header.Get(name) }

// Path is the request path without the query string.
func (q Request) Path() string { return q.r.URL.Path }
