package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/dgraph-io/badger/v4"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/NS2CDT/PerfAnalyzer/internal/storageprovider"
	"github.com/NS2CDT/PerfAnalyzer/internal/storageutil"
)

// objectStore is an ObjectHandler that can also remove objects.
type objectStore interface {
	storageutil.ObjectHandler
	Delete(ctx context.Context, name string) error
}

// newStorage opens the store selected by config and returns it with the
// function releasing it.
func newStorage(ctx context.Context, config ServiceConfig) (objectStore, func() error, error) {
	switch config.Storage {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		return &storageprovider.Gcs{BucketHandle: client.Bucket(config.GCSBucket)}, client.Close, nil
	case "badger":
		db, err := badger.Open(badger.DefaultOptions(config.BadgerDir).WithLogger(nil))
		if err != nil {
			return nil, nil, err
		}
		return &storageprovider.Badger{DB: db}, db.Close, nil
	case "blob", "":
		b, err := storageprovider.OpenBlob(ctx, config.BucketURL)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage %q", config.Storage)
	}
}
