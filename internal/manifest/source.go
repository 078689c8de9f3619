package manifest

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/keithlinneman/nadi-go/internal/xerrors"
)

// MaxBytes bounds how much of a manifest is read from any source.
const MaxBytes = 8 << 20

// Source yields the raw manifest bytes.
type Source interface {
	Read(ctx context.Context) ([]byte, error)
	String() string
}

// FileSource reads the manifest from local disk.
type FileSource struct {
	Path string
}

func (s FileSource) Read(ctx context.Context) ([]byte, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, xerrors.Wrap(err, "open manifest")
	}
	defer f.Close()
	return readLimited(f)
}

func (s FileSource) String() string { return s.Path }

// S3API is the subset of the S3 client used here.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the manifest from an object uploaded by the build pipeline.
type S3Source struct {
	Client S3API
	Bucket string
	Key    string
}

func (s S3Source) Read(ctx context.Context) ([]byte, error) {
	if s.Client == nil {
		return nil, xerrors.New("s3 manifest source has no client")
	}
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "get %s", s)
	}
	defer out.Body.Close()
	return readLimited(out.Body)
}

func (s S3Source) String() string { return fmt.Sprintf("s3://%s/%s", s.Bucket, s.Key) }

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxBytes+1))
	if err != nil {
		return nil, xerrors.Wrap(err, "read manifest")
	}
	if len(data) > MaxBytes {
		return nil, xerrors.Newf("manifest exceeds %d bytes", MaxBytes)
	}
	return data, nil
}
