package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mfafio/mfaf/pkg/mfaf"
)

// Source is a ByteSource with a lifetime: callers open one to Load an
// Archive from it and Close it once the Archive is no longer needed.
type Source interface {
	mfaf.ByteSource
	io.Closer
}

// Location is a target for Open/Save, expressed either as a local
// filesystem path or an "s3://bucket/key" URI. S3 carries the
// credentials and cache path that only apply to the S3 backend; they
// are ignored for local paths.
type Location struct {
	Path string
	S3   S3Opts
}

// ParseLocation splits a raw location string into a Location,
// recognizing the "s3://bucket/key" scheme and treating everything
// else as a local path.
func ParseLocation(raw string) (Location, error) {
	if !strings.HasPrefix(raw, "s3://") {
		return Location{Path: raw}, nil
	}
	rest := strings.TrimPrefix(raw, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Location{}, fmt.Errorf("mfaf: invalid s3 location %q, want s3://bucket/key", raw)
	}
	return Location{S3: S3Opts{Bucket: parts[0], Key: parts[1]}}, nil
}

// Open resolves loc to a Source, dispatching on whether it names a
// local path or an S3 object, mirroring the teacher's storage-type
// switch but keyed on the location's scheme instead of an archive
// header field.
func Open(ctx context.Context, loc Location) (Source, error) {
	if loc.Path != "" {
		return OpenLocal(loc.Path)
	}
	return OpenS3(ctx, loc.S3)
}

// Save encodes a to loc, dispatching the same way Open does.
func Save(ctx context.Context, loc Location, a *mfaf.Archive) error {
	if loc.Path != "" {
		return SaveLocal(loc.Path, a)
	}
	return SaveS3(ctx, loc.S3, a)
}
