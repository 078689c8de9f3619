package httpserver

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/keithlinneman/nadi-go/internal/pathutil"
)

const (
	immutableCache = "public, max-age=31536000, immutable"
	revalidate     = "no-cache"
)

// staticHandler serves fsys with the /static/ prefix already stripped.
// Bundler output under build/ has content-hashed names and is cached
// forever; everything else (manifest.json, dev sources) revalidates.
// Directories are never listed.
func staticHandler(fsys fs.FS) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "" || pathutil.HasDotSegments(name) || pathutil.HasHiddenSegment(name) || !fs.ValidPath(name) {
			http.NotFound(w, r)
			return
		}
		st, err := fs.Stat(fsys, name)
		if err != nil || st.IsDir() {
			http.NotFound(w, r)
			return
		}
		if strings.HasPrefix(name, "build/") && name != "build/manifest.json" {
			w.Header().Set("Cache-Control", immutableCache)
		} else {
			w.Header().Set("Cache-Control", revalidate)
		}
		http.ServeFileFS(w, r, fsys, name)
	})
}
