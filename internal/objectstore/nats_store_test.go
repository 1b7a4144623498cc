// Package objectstore_test tests the object store implementations.
package objectstore_test

import (
	"context"
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-demo/internal/core"
	"github.com/book-expert/voice-demo/internal/objectstore"
)

// StartTestServer starts an in-memory NATS server for testing purposes.
func StartTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

func TestNatsObjectStore_UploadDownload(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.NewNatsObjectStore(jetstreamContext, "test-bucket")
	require.NoError(t, err)

	ctx := context.Background()
	key := "speech.wav"
	uploadData := []byte("RIFF and some audio bytes")

	require.NoError(t, store.Upload(ctx, key, uploadData))

	downloadData, err := store.Download(ctx, key)
	require.NoError(t, err)
	require.Equal(t, uploadData, downloadData)

	_, err = store.Download(ctx, "missing.wav")
	require.ErrorIs(t, err, core.ErrObjectNotFound)
}

func TestNatsObjectStore_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	first, err := objectstore.NewNatsObjectStore(jetstreamContext, "shared")
	require.NoError(t, err)
	require.NoError(t, first.Upload(context.Background(), "a.wav", []byte("RIFF")))

	second, err := objectstore.NewNatsObjectStore(jetstreamContext, "shared")
	require.NoError(t, err)

	data, err := second.Download(context.Background(), "a.wav")
	require.NoError(t, err)
	require.Equal(t, []byte("RIFF"), data)
}
