package manifest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const sampleManifest = `{
  "src/zeta.ts": {"file": "zeta.111.js", "isEntry": true},
  "src/alpha.ts": {"file": "alpha.222.js", "css": ["alpha.a.css", "alpha.b.css"]},
  "src/main.ts": {"file": "main.333.js", "isEntry": true, "css": ["main.css"], "imports": ["src/alpha.ts"]}
}`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return p
}

func ids(m *Manifest) []string {
	var out []string
	m.Each(func(id string, _ Entry) { out = append(out, id) })
	return out
}

func TestParse_PreservesDocumentOrder(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := strings.Join(ids(m), ",")
	if want := "src/zeta.ts,src/alpha.ts,src/main.ts"; got != want {
		t.Fatalf("order = %s, want %s", got, want)
	}

	e, ok := m.Get("src/main.ts")
	if !ok {
		t.Fatal("src/main.ts missing")
	}
	if e.File != "main.333.js" || !e.IsEntry || len(e.CSS) != 1 || e.CSS[0] != "main.css" {
		t.Fatalf("entry = %+v", e)
	}

	alpha, _ := m.Get("src/alpha.ts")
	if alpha.IsEntry {
		t.Fatal("isEntry should default to false")
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"whitespace":   "   \n",
		"array":        `[{"file": "a.js"}]`,
		"string":       `"manifest"`,
		"null":         `null`,
		"truncated":    `{"src/main.ts": {"file": "main.js"`,
		"entry scalar": `{"src/main.ts": 5}`,
		"bad isEntry":  `{"src/main.ts": {"file": "main.js", "isEntry": "yes"}}`,
		"bad css":      `{"src/main.ts": {"file": "main.js", "css": "main.css"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(body)); err == nil {
				t.Fatalf("Parse(%q) should fail", body)
			}
		})
	}
}

func TestParse_ArrayIsNotObject(t *testing.T) {
	_, err := Parse([]byte(`[]`))
	if !errors.Is(err, ErrNotObject) {
		t.Fatalf("err = %v, want ErrNotObject", err)
	}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	m := Load(context.Background(), FileSource{Path: filepath.Join(t.TempDir(), "nope.json")})
	if m == nil {
		t.Fatal("Load should never return nil")
	}
	if m.Len() != 0 {
		t.Fatalf("Len = %d, want 0", m.Len())
	}
}

func TestLoad_MalformedFileIsEmpty(t *testing.T) {
	m := Load(context.Background(), FileSource{Path: writeFile(t, "{not json")})
	if m.Len() != 0 {
		t.Fatalf("Len = %d, want 0", m.Len())
	}
}

func TestLoad_NilSource(t *testing.T) {
	if m := Load(context.Background(), nil); m.Len() != 0 {
		t.Fatalf("Len = %d, want 0", m.Len())
	}
}

func TestLoad_File(t *testing.T) {
	m := Load(context.Background(), FileSource{Path: writeFile(t, sampleManifest)})
	if m.Len() != 3 {
		t.Fatalf("Len = %d, want 3", m.Len())
	}
}

func TestFingerprint(t *testing.T) {
	p := writeFile(t, "abc")
	// md5("abc"), the file is not parsed
	if got := Fingerprint(context.Background(), FileSource{Path: p}); got != "900150983cd24fb0d6963f7d28e17f72" {
		t.Fatalf("Fingerprint = %q", got)
	}

	missing := FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}
	if got := Fingerprint(context.Background(), missing); got != DevVersion {
		t.Fatalf("Fingerprint(missing) = %q, want %q", got, DevVersion)
	}
	if got := Fingerprint(context.Background(), nil); got != DevVersion {
		t.Fatalf("Fingerprint(nil) = %q, want %q", got, DevVersion)
	}
}

func TestNilManifestAccessors(t *testing.T) {
	var m *Manifest
	if m.Len() != 0 {
		t.Fatal("nil manifest Len should be 0")
	}
	if _, ok := m.Get("x"); ok {
		t.Fatal("nil manifest Get should miss")
	}
	m.Each(func(string, Entry) { t.Fatal("nil manifest should not iterate") })
}

type stubS3 struct {
	body   string
	err    error
	bucket string
	key    string
}

func (s *stubS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	s.bucket, s.key = *in.Bucket, *in.Key
	if s.err != nil {
		return nil, s.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(s.body))}, nil
}

func TestS3Source(t *testing.T) {
	stub := &stubS3{body: sampleManifest}
	src := S3Source{Client: stub, Bucket: "assets", Key: "build/manifest.json"}

	m := Load(context.Background(), src)
	if m.Len() != 3 {
		t.Fatalf("Len = %d, want 3", m.Len())
	}
	if stub.bucket != "assets" || stub.key != "build/manifest.json" {
		t.Fatalf("GetObject(%q, %q)", stub.bucket, stub.key)
	}
	if src.String() != "s3://assets/build/manifest.json" {
		t.Fatalf("String() = %q", src.String())
	}
}

func TestS3Source_ErrorDegrades(t *testing.T) {
	src := S3Source{Client: &stubS3{err: errors.New("access denied")}, Bucket: "b", Key: "k"}
	if m := Load(context.Background(), src); m.Len() != 0 {
		t.Fatalf("Len = %d, want 0", m.Len())
	}
	if got := Fingerprint(context.Background(), src); got != DevVersion {
		t.Fatalf("Fingerprint = %q, want %q", got, DevVersion)
	}
	if _, err := (S3Source{}).Read(context.Background()); err == nil {
		t.Fatal("S3Source without client should fail")
	}
}

func TestReadLimited_TooLarge(t *testing.T) {
	_, err := readLimited(io.LimitReader(zeroReader{}, MaxBytes+10))
	if err == nil {
		t.Fatal("expected size error")
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = ' '
	}
	return len(p), nil
}
