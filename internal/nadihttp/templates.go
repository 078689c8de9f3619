package nadihttp

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/keithlinneman/nadi-go/internal/xerrors"
)

var ErrUnknownTemplate = errors.New("unknown template")

// Templates is a set of page templates keyed by slash path relative to
// their root, e.g. "nadi/app.html".
type Templates struct {
	byName map[string]*template.Template
}

// LoadTemplates parses every *.html file under each fsys in order; a later
// fs overrides an earlier one for the same name.
func LoadTemplates(fsyss ...fs.FS) (*Templates, error) {
	t := &Templates{byName: make(map[string]*template.Template)}
	for _, fsys := range fsyss {
		if fsys == nil {
			continue
		}
		err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || path.Ext(p) != ".html" {
				return nil
			}
			src, err := fs.ReadFile(fsys, p)
			if err != nil {
				return xerrors.Wrapf(err, "read template %s", p)
			}
			tmpl, err := template.New(p).Parse(string(src))
			if err != nil {
				return xerrors.Wrapf(err, "parse template %s", p)
			}
			t.byName[p] = tmpl
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// DirFS is os.DirFS for an optional override directory; "" yields nil.
func DirFS(dir string) (fs.FS, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, nil
	}
	st, err := os.Stat(dir)
	if err != nil {
		return nil, xerrors.Wrapf(err, "templates dir %s", dir)
	}
	if !st.IsDir() {
		return nil, xerrors.Newf("templates dir %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

func (t *Templates) Has(name string) bool {
	_, ok := t.byName[name]
	return ok
}

func (t *Templates) Names() []string {
	names := make([]string, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute renders into a buffer so a failing template never leaves a
// half-written response.
func (t *Templates) Execute(name string, data any) ([]byte, error) {
	tmpl, ok := t.byName[name]
	if !ok {
		return nil, xerrors.Wrapf(ErrUnknownTemplate, "template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, xerrors.Wrapf(err, "execute template %s", name)
	}
	return buf.Bytes(), nil
}
