// Package webassets embeds the built-in page templates.
package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed templates
var embedded embed.FS

// TemplatesFS is rooted so the default page is "nadi/app.html".
func TemplatesFS() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(fmt.Errorf("webassets: templates subfs: %w", err))
	}
	return sub
}
