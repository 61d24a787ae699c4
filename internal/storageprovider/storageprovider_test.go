package storageprovider_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/dgraph-io/badger/v4"
	"github.com/fsouza/fake-gcs-server/fakestorage"
	"github.com/google/uuid"
	"github.com/phayes/freeport"
	"gocloud.dev/blob/memblob"

	"github.com/NS2CDT/PerfAnalyzer/internal/storageprovider"
	"github.com/NS2CDT/PerfAnalyzer/internal/storageutil"
	"github.com/NS2CDT/PerfAnalyzer/internal/testutil"
)

const bucketName = "plogs"

var (
	gcsServer *fakestorage.Server
	badgerDB  *badger.DB
)

type deleter interface {
	Delete(ctx context.Context, name string) error
}

type handler interface {
	storageutil.ObjectHandler
	deleter
}

func TestMain(m *testing.M) {
	port, err := freeport.GetFreePort()
	if err != nil {
		log.Fatalf("no free port found: %v", err)
	}
	publicHost := fmt.Sprintf("127.0.0.1:%d", port)
	gcsServer, err = fakestorage.NewServerWithOptions(fakestorage.Options{
		PublicHost: publicHost,
		Host:       "127.0.0.1",
		Port:       uint16(port),
		Scheme:     "http",
	})
	if err != nil {
		log.Fatalf("couldn't set up gcs server: %v", err)
	}
	os.Setenv("STORAGE_EMULATOR_HOST", publicHost)
	gcsServer.CreateBucketWithOpts(fakestorage.CreateBucketOpts{Name: bucketName})

	badgerDB, err = badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		log.Fatalf("couldn't create an in-memory badgerdb: %s", err.Error())
	}

	code := m.Run()

	if err := badgerDB.Close(); err != nil {
		log.Printf("closing in-memory badgerdb: %s", err.Error())
	}
	gcsServer.Stop()
	os.Exit(code)
}

func handlers(t *testing.T) map[string]handler {
	t.Helper()
	client, err := storage.NewClient(context.Background())
	if err != nil {
		t.Fatalf("we should be able to create a client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	mem := &storageprovider.Blob{Bucket: memblob.OpenBucket(nil)}
	t.Cleanup(func() { mem.Close() })

	return map[string]handler{
		"GCS":    &storageprovider.Gcs{BucketHandle: client.Bucket(bucketName)},
		"Badger": &storageprovider.Badger{DB: badgerDB},
		"Blob":   mem,
	}
}

type summary struct {
	Version int       `json:"version"`
	Frames  []float64 `json:"frames"`
	Name    string    `json:"name"`
}

func TestCompressedRoundTrip(t *testing.T) {
	ctx := context.Background()
	want := summary{Version: 1, Frames: []float64{16.6, 17.1, 33.3}, Name: "ServerGame::Update"}

	for name, h := range handlers(t) {
		t.Run(name, func(t *testing.T) {
			objectName := storageutil.SummaryPath(uuid.New().String())
			if err := storageutil.CompressedWrite(ctx, h, objectName, want); err != nil {
				t.Fatalf("we should be able to write: %v", err)
			}

			var got summary
			if err := storageutil.UnmarshalCompressed(ctx, h, objectName, &got); err != nil {
				t.Fatalf("we should be able to read the object: %v", err)
			}
			if diff := testutil.Diff(got, want); diff != "" {
				t.Fatalf("Result mismatch: got - want +\n%s", diff)
			}
		})
	}
}

func TestRawObjects(t *testing.T) {
	ctx := context.Background()
	payload := bytes.Repeat([]byte{0x01, 0x40, 0x9a}, 1000)

	for name, h := range handlers(t) {
		t.Run(name, func(t *testing.T) {
			objectName := storageutil.PlogPath(uuid.New().String())
			n, err := storageutil.Copy(ctx, h, objectName, bytes.NewReader(payload))
			if err != nil {
				t.Fatalf("we should be able to write: %v", err)
			}
			if n != int64(len(payload)) {
				t.Fatalf("wrote %d bytes, want %d", n, len(payload))
			}

			r, err := h.Get(ctx, objectName)
			if err != nil {
				t.Fatalf("we should be able to read the object: %v", err)
			}
			if r.Size() != int64(len(payload)) {
				t.Fatalf("Size() = %d, want %d", r.Size(), len(payload))
			}
			got, err := io.ReadAll(r)
			r.Close()
			if err != nil {
				t.Fatalf("we should be able to read the object: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatal("data should be identical")
			}

			if err := h.Delete(ctx, objectName); err != nil {
				t.Fatalf("we should be able to delete the object: %v", err)
			}
			if _, err := h.Get(ctx, objectName); !errors.Is(err, storageutil.ErrObjectNotFound) {
				t.Fatalf("expected ErrObjectNotFound after delete, got %v", err)
			}
		})
	}
}

func TestMissingObject(t *testing.T) {
	ctx := context.Background()
	for name, h := range handlers(t) {
		t.Run(name, func(t *testing.T) {
			_, err := h.Get(ctx, "summaries/"+strings.Repeat("0", 8))
			if !errors.Is(err, storageutil.ErrObjectNotFound) {
				t.Fatalf("expected ErrObjectNotFound, got %v", err)
			}
			var s summary
			err = storageutil.UnmarshalCompressed(ctx, h, "summaries/missing", &s)
			if !errors.Is(err, storageutil.ErrObjectNotFound) {
				t.Fatalf("expected ErrObjectNotFound, got %v", err)
			}
		})
	}
}
