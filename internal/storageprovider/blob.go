package storageprovider

import (
	"context"
	"io"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/NS2CDT/PerfAnalyzer/internal/storageutil"
)

// Blob implements storageutil.ObjectHandler for any gocloud bucket
// (file://, mem://, gs://).
type Blob struct {
	Bucket *blob.Bucket
}

// OpenBlob opens the bucket at urlstr. The matching driver has to be linked
// in by the caller.
func OpenBlob(ctx context.Context, urlstr string) (*Blob, error) {
	b, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, err
	}
	return &Blob{Bucket: b}, nil
}

func (b *Blob) Put(ctx context.Context, name string) (io.WriteCloser, error) {
	return b.Bucket.NewWriter(ctx, name, nil)
}

// Get reads a file from the storage provider with name being the path.
// If a key was not found, it will return ErrObjectNotFound.
func (b *Blob) Get(ctx context.Context, name string) (storageutil.ReadSizeCloser, error) {
	r, err := b.Bucket.NewReader(ctx, name, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, storageutil.ErrObjectNotFound
		}
		return nil, err
	}
	return r, nil
}

func (b *Blob) Delete(ctx context.Context, name string) error {
	err := b.Bucket.Delete(ctx, name)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

func (b *Blob) Close() error {
	return b.Bucket.Close()
}
