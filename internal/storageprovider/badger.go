package storageprovider

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/dgraph-io/badger/v4"

	"github.com/NS2CDT/PerfAnalyzer/internal/storageutil"
)

// Badger implements storageutil.ObjectHandler on top of a badger key-value
// store. plogserve uses it as a local cache of summaries.
type Badger struct {
	DB *badger.DB
}

// Put buffers the object and stores it under name on Close.
func (b *Badger) Put(ctx context.Context, name string) (io.WriteCloser, error) {
	return &badgerWriter{
		b:    &bytes.Buffer{},
		txn:  b.DB.NewTransaction(true),
		name: name,
	}, nil
}

// Get reads a file from the storage provider with name being the path.
// If a key was not found, it will return ErrObjectNotFound.
func (b *Badger) Get(ctx context.Context, name string) (storageutil.ReadSizeCloser, error) {
	txn := b.DB.NewTransaction(false)
	item, err := txn.Get([]byte(name))
	if err != nil {
		txn.Discard()
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storageutil.ErrObjectNotFound
		}
		return nil, err
	}

	value, err := item.ValueCopy(nil)
	if err != nil {
		txn.Discard()
		return nil, err
	}

	return &badgerReader{
		txn:    txn,
		reader: bytes.NewReader(value),
		size:   int64(len(value)),
	}, nil
}

// Delete removes name. Deleting a missing key is not an error.
func (b *Badger) Delete(ctx context.Context, name string) error {
	return b.DB.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(name))
	})
}

// badgerWriter implements io.WriteCloser
type badgerWriter struct {
	b    *bytes.Buffer
	txn  *badger.Txn
	name string
}

func (bw *badgerWriter) Write(p []byte) (int, error) {
	return bw.b.Write(p)
}

func (bw *badgerWriter) Close() error {
	defer bw.txn.Discard()
	err := bw.txn.Set([]byte(bw.name), bw.b.Bytes())
	if err != nil {
		return err
	}
	return bw.txn.Commit()
}

// badgerReader implements storageutil.ReadSizeCloser
type badgerReader struct {
	txn    *badger.Txn
	reader io.Reader
	size   int64
}

func (b *badgerReader) Read(p []byte) (n int, err error) {
	return b.reader.Read(p)
}

func (b *badgerReader) Close() error {
	b.txn.Discard()
	return nil
}

func (b *badgerReader) Size() int64 {
	return b.size
}
