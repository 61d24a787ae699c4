package storageutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/pierrec/lz4/v4"
)

// ErrObjectNotFound indicates an object was not found.
var ErrObjectNotFound = errors.New("object not found")

// DefaultTimeout bounds a single compressed read or write.
const DefaultTimeout = 5 * time.Second

type ReadSizeCloser interface {
	io.Reader
	io.Closer
	Size() int64
}

// ObjectHandler provides common interface for multiple storage providers.
type ObjectHandler interface {
	// Put writes a file to the storage provider with name being the path.
	Put(ctx context.Context, name string) (io.WriteCloser, error)
	// Get reads a file from the storage provider with name being the path.
	// If a key was not found, it will return ErrObjectNotFound.
	Get(ctx context.Context, name string) (ReadSizeCloser, error)
}

// PlogPath is where the raw bytes of an uploaded plog are stored.
func PlogPath(id string) string {
	return fmt.Sprintf("plogs/%s.plog", id)
}

// SummaryPath is where the compressed summary of an uploaded plog is stored.
func SummaryPath(id string) string {
	return fmt.Sprintf("summaries/%s.json.lz4", id)
}

// CompressedWrite encodes d as JSON, compresses it with lz4 and writes it to
// objectName.
func CompressedWrite(ctx context.Context, b ObjectHandler, objectName string, d interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	ow, err := b.Put(ctx, objectName)
	if err != nil {
		return err
	}
	zw := lz4.NewWriter(ow)
	_ = zw.Apply(lz4.CompressionLevelOption(lz4.Level9))
	err = json.NewEncoder(zw).Encode(d)
	if err != nil {
		ow.Close()
		return err
	}
	err = zw.Close()
	if err != nil {
		ow.Close()
		return err
	}
	return ow.Close()
}

// UnmarshalCompressed reads an object written by CompressedWrite into d.
func UnmarshalCompressed(ctx context.Context, b ObjectHandler, objectName string, d interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	or, err := b.Get(ctx, objectName)
	if err != nil {
		return err
	}
	defer or.Close()
	zr := lz4.NewReader(or)
	return json.NewDecoder(zr).Decode(d)
}

// Copy streams r into objectName without transformation.
func Copy(ctx context.Context, b ObjectHandler, objectName string, r io.Reader) (int64, error) {
	ow, err := b.Put(ctx, objectName)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(ow, r)
	if err != nil {
		ow.Close()
		return n, err
	}
	return n, ow.Close()
}
