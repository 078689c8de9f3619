// Package assettags turns manifest entries into the script and stylesheet
// tags a page needs.
package assettags

import (
	"strings"

	"github.com/keithlinneman/nadi-go/internal/manifest"
)

const (
	// BasePath is where the build output is served from.
	BasePath = "/static/build/"
	// DevEntry is loaded when there is no manifest, i.e. the dev server owns the assets.
	DevEntry = "/static/src/main.ts"
)

// Scripts returns one module script tag per entry chunk, in manifest order,
// or the dev entry tag when the manifest is empty.
func Scripts(m *manifest.Manifest) string {
	if m.Len() == 0 {
		return scriptTag(DevEntry)
	}
	var tags []string
	m.Each(func(_ string, e manifest.Entry) {
		if e.IsEntry {
			tags = append(tags, scriptTag(BasePath+e.File))
		}
	})
	return strings.Join(tags, "\n")
}

// Styles returns one stylesheet link per css file, in manifest order. There
// is no fallback: an empty manifest has no styles.
func Styles(m *manifest.Manifest) string {
	var tags []string
	m.Each(func(_ string, e manifest.Entry) {
		for _, css := range e.CSS {
			tags = append(tags, `<link rel="stylesheet" href="`+BasePath+css+`">`)
		}
	})
	return strings.Join(tags, "\n")
}

func scriptTag(src string) string {
	return `<script type="module" src="` + src + `"></script>`
}
