// Package artifact stores durable pipeline outputs (translated text blobs,
// audio segments, merged chapter files) behind opaque references.
package artifact

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("artifact not found")
	ErrInvalidRef = errors.New("invalid artifact reference")
)

// Store is the blob storage interface. References are opaque, assigned at
// write time, and write-once: an artifact is never overwritten in place, a
// new attempt always gets a fresh reference.
type Store interface {
	// Put stores data and returns a fresh reference. ext is the file
	// extension including the dot (".txt", ".wav", ".mp3").
	Put(ctx context.Context, data []byte, ext string) (string, error)
	// Get returns the bytes behind ref.
	Get(ctx context.Context, ref string) ([]byte, error)
	// Path resolves ref to a local filesystem path for tools that operate
	// on files (ffmpeg). The file may not exist yet for refs from NewRef.
	Path(ref string) (string, error)
	// NewRef reserves a fresh reference without writing data; used when an
	// external tool produces the file directly.
	NewRef(ext string) string
}
