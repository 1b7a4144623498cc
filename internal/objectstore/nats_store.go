// Package objectstore keeps generated audio, either in a NATS JetStream object
// store or on the local filesystem.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/voice-demo/internal/core"
)

const (
	errFmtBindBucket   = "failed to bind to existing object store bucket '%s': %w"
	errFmtCreateBucket = "failed to create object store bucket '%s': %w"
	errFmtGetObject    = "failed to get object '%s' from bucket '%s': %w"
	errFmtReadObject   = "failed to read object '%s': %w"
	errFmtCloseObject  = "failed to close object '%s': %w"
	errFmtPutObject    = "failed to put object '%s' to bucket '%s': %w"
	audioContentType   = "audio/wav"
)

// NatsObjectStore implements the core.ObjectStore interface using NATS JetStream.
type NatsObjectStore struct {
	bucket string
	store  nats.ObjectStore
}

// NewNatsObjectStore creates the bucket, or binds to it if it already exists.
func NewNatsObjectStore(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsObjectStore, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Generated speech for the %s bucket.", bucketName),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf(errFmtCreateBucket, bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf(errFmtBindBucket, bucketName, err)
		}
	}

	return &NatsObjectStore{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Download retrieves an object from the NATS object store.
func (n *NatsObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := n.store.Get(key, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			err = core.ErrObjectNotFound
		}

		return nil, fmt.Errorf(errFmtGetObject, key, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf(errFmtReadObject, key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf(errFmtCloseObject, key, closeErr)
	}

	return data, nil
}

// Upload saves an object to the NATS object store.
func (n *NatsObjectStore) Upload(ctx context.Context, key string, data []byte) error {
	_, err := n.store.Put(&nats.ObjectMeta{
		Name:    key,
		Headers: nats.Header{"Content-Type": []string{audioContentType}},
	}, bytes.NewReader(data), nats.Context(ctx))
	if err != nil {
		return fmt.Errorf(errFmtPutObject, key, n.bucket, err)
	}

	return nil
}
