package assettags

import (
	"strings"
	"testing"

	"github.com/keithlinneman/nadi-go/internal/manifest"
)

func mustParse(t *testing.T, body string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return m
}

func TestSingleEntry(t *testing.T) {
	m := mustParse(t, `{"main.ts": {"file": "main.abc123.js", "isEntry": true, "css": ["main.xyz.css"]}}`)

	if got, want := Scripts(m), `<script type="module" src="/static/build/main.abc123.js"></script>`; got != want {
		t.Fatalf("Scripts = %q, want %q", got, want)
	}
	if got, want := Styles(m), `<link rel="stylesheet" href="/static/build/main.xyz.css">`; got != want {
		t.Fatalf("Styles = %q, want %q", got, want)
	}
}

func TestEmptyManifest(t *testing.T) {
	for _, m := range []*manifest.Manifest{manifest.Empty(), nil} {
		if got, want := Scripts(m), `<script type="module" src="/static/src/main.ts"></script>`; got != want {
			t.Fatalf("Scripts = %q, want %q", got, want)
		}
		if got := Styles(m); got != "" {
			t.Fatalf("Styles = %q, want empty", got)
		}
	}
}

func TestScripts_OnlyEntriesInOrder(t *testing.T) {
	m := mustParse(t, `{
		"b.ts": {"file": "b.js", "isEntry": true},
		"shared.ts": {"file": "shared.js"},
		"a.ts": {"file": "a.js", "isEntry": true}
	}`)

	lines := strings.Split(Scripts(m), "\n")
	want := []string{
		`<script type="module" src="/static/build/b.js"></script>`,
		`<script type="module" src="/static/build/a.js"></script>`,
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestScripts_NoEntriesIsEmpty(t *testing.T) {
	m := mustParse(t, `{"shared.ts": {"file": "shared.js"}}`)
	if got := Scripts(m); got != "" {
		t.Fatalf("Scripts = %q, want empty (fallback only applies to an empty manifest)", got)
	}
}

func TestStyles_ConcatenatesAcrossEntries(t *testing.T) {
	m := mustParse(t, `{
		"z.ts": {"file": "z.js", "css": ["z1.css", "z2.css"]},
		"none.ts": {"file": "none.js", "css": []},
		"a.ts": {"file": "a.js", "isEntry": true, "css": ["a.css"]}
	}`)

	want := strings.Join([]string{
		`<link rel="stylesheet" href="/static/build/z1.css">`,
		`<link rel="stylesheet" href="/static/build/z2.css">`,
		`<link rel="stylesheet" href="/static/build/a.css">`,
	}, "\n")
	if got := Styles(m); got != want {
		t.Fatalf("Styles =\n%s\nwant\n%s", got, want)
	}
}
