package photostore

import (
	"context"
	"io"
)

// PhotoStore owns the stored source images; the entity store only keeps the
// storage key. Get and Delete report a missing image with an error matching
// fs.ErrNotExist.
type PhotoStore interface {
	Save(ctx context.Context, prefix, mimeType string, r io.Reader) (storageKey string, err error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
}
