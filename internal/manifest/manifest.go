package manifest

import (
	"bytes"
	"encoding/json"
	"errors"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/keithlinneman/nadi-go/internal/xerrors"
)

var ErrNotObject = errors.New("manifest is not a JSON object")

// Entry is one record of the manifest. Keys other than these are ignored.
type Entry struct {
	File    string   `json:"file"`
	IsEntry bool     `json:"isEntry"`
	CSS     []string `json:"css"`
}

// Manifest is immutable once built and safe to share between goroutines.
type Manifest struct {
	entries *orderedmap.OrderedMap[string, Entry]
}

func Empty() *Manifest {
	return &Manifest{entries: orderedmap.New[string, Entry]()}
}

// Parse decodes a manifest document keeping its key order.
func Parse(data []byte) (*Manifest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, xerrors.WithStack(ErrNotObject)
	}
	om := orderedmap.New[string, Entry]()
	if err := json.Unmarshal(data, om); err != nil {
		return nil, xerrors.Wrap(err, "decode manifest")
	}
	return &Manifest{entries: om}, nil
}

func (m *Manifest) Len() int {
	if m == nil || m.entries == nil {
		return 0
	}
	return m.entries.Len()
}

func (m *Manifest) Get(id string) (Entry, bool) {
	if m == nil || m.entries == nil {
		return Entry{}, false
	}
	return m.entries.Get(id)
}

// Each calls fn for every entry in document order.
func (m *Manifest) Each(fn func(id string, e Entry)) {
	if m == nil || m.entries == nil {
		return
	}
	for p := m.entries.Oldest(); p != nil; p = p.Next() {
		fn(p.Key, p.Value)
	}
}
