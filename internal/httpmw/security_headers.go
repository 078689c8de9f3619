package httpmw

import "net/http"

// DefaultCSP allows same-origin module scripts and styles. Inline
// <script type="application/json"> props blocks are data, not script, so
// they need no exception.
const DefaultCSP = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'; connect-src 'self'; base-uri 'self'; form-action 'self'; frame-ancestors 'none'; object-src 'none'"

type SecurityOptions struct {
	// ContentSecurityPolicy defaults to DefaultCSP.
	ContentSecurityPolicy string
	// HSTS is sent only when true; leave it off for plain-http dev servers.
	HSTS bool
}

func SecurityHeaders(opts SecurityOptions) func(http.Handler) http.Handler {
	csp := opts.ContentSecurityPolicy
	if csp == "" {
		csp = DefaultCSP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if opts.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), geolocation=(), microphone=(), payment=(), usb=()")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			next.ServeHTTP(w, r)
		})
	}
}
