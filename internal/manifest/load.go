package manifest

import (
	"context"

	"github.com/keithlinneman/nadi-go/internal/cryptoutil"
)

// DevVersion is reported when the manifest cannot be read.
const DevVersion = "dev"

// Load reads and parses the manifest from src. Any failure yields an empty
// manifest; use Read and Parse directly to see the error.
func Load(ctx context.Context, src Source) *Manifest {
	m, err := Read(ctx, src)
	if err != nil {
		return Empty()
	}
	return m
}

// Read is Load with the error.
func Read(ctx context.Context, src Source) (*Manifest, error) {
	if src == nil {
		return Empty(), nil
	}
	data, err := src.Read(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Fingerprint is the asset version: the MD5 of the raw manifest bytes,
// or DevVersion when they cannot be read. The bytes are not parsed.
func Fingerprint(ctx context.Context, src Source) string {
	if src == nil {
		return DevVersion
	}
	data, err := src.Read(ctx)
	if err != nil {
		return DevVersion
	}
	return cryptoutil.MD5Hex(data)
}
