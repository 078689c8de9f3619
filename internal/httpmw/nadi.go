package httpmw

import (
	"net/http"
)

const (
	// NadiRequestHeader is sent by the Nadi client on protocol requests.
	NadiRequestHeader = "X-Nadi"
	VersionHeader     = "X-Nadi-Version"
	CSRFHeader        = "X-CSRF-Token"
)

// TokenProvider issues the CSRF token for a request, setting any cookie
// it needs on w.
type TokenProvider interface {
	Token(w http.ResponseWriter, r *http.Request) string
}

// NadiHeaders stamps every response with the protocol version. Requests
// carrying a non-empty X-Nadi header also get the CSRF token so the client
// can send it back on mutations.
//
// Headers are set before next runs; a handler may still overwrite them.
func NadiHeaders(version string, tokens TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(VersionHeader, version)
			if tokens != nil && r.Header.Get(NadiRequestHeader) != "" {
				if tok := tokens.Token(w, r); tok != "" {
					w.Header().Set(CSRFHeader, tok)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
