package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/myopinion/apiserver/internal/events"
	"github.com/myopinion/apiserver/internal/mq"
	"github.com/myopinion/apiserver/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend delivers a fixed set of messages synchronously and records
// the handler results.
type stubBackend struct {
	messages []mq.Message
	results  []error
}

func (b *stubBackend) Publish(_ context.Context, _ string, data []byte, attrs map[string]string) (string, error) {
	b.messages = append(b.messages, mq.Message{Data: data, Attributes: attrs})
	return "", nil
}

func (b *stubBackend) Subscribe(ctx context.Context, _ string, handler mq.Handler) error {
	for _, msg := range b.messages {
		b.results = append(b.results, handler(ctx, msg))
	}
	return nil
}

func (b *stubBackend) Close() error { return nil }

type stubObjectStore struct {
	deleted []string
	failOn  string
}

func (s *stubObjectStore) EnsureBucket(context.Context) error { return nil }

func (s *stubObjectStore) Put(context.Context, string, io.Reader, int64, string) error { return nil }

func (s *stubObjectStore) Get(context.Context, string) (io.ReadCloser, error) { return nil, nil }

func (s *stubObjectStore) Delete(_ context.Context, key string) error {
	if key == s.failOn {
		return errors.New("storage unavailable")
	}
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *stubObjectStore) Bucket() string { return "test" }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestWorkerDeletesOrphanedObjects(t *testing.T) {
	event, err := json.Marshal(events.Cleanup{
		Kind:       events.KindUserDeleted,
		UserID:     4,
		ObjectKeys: []string{"a", "b"},
	})
	require.NoError(t, err)

	backend := &stubBackend{messages: []mq.Message{{ID: "1", Data: event}}}
	objects := &stubObjectStore{}
	w := New(mq.New(backend), storage.NewStorage(objects), quietLogger())

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, []string{"a", "b"}, objects.deleted)
	require.Len(t, backend.results, 1)
	assert.NoError(t, backend.results[0])
}

func TestWorkerDropsMalformedEvents(t *testing.T) {
	backend := &stubBackend{messages: []mq.Message{{ID: "1", Data: []byte("not json")}}}
	objects := &stubObjectStore{}
	w := New(mq.New(backend), storage.NewStorage(objects), quietLogger())

	require.NoError(t, w.Run(context.Background()))
	// Malformed events must not be nacked into a redelivery loop.
	require.Len(t, backend.results, 1)
	assert.NoError(t, backend.results[0])
	assert.Empty(t, objects.deleted)
}

func TestWorkerSignalsRetryOnStorageFailure(t *testing.T) {
	event, err := json.Marshal(events.Cleanup{
		Kind:       events.KindPostDeleted,
		PostID:     9,
		ObjectKeys: []string{"a", "broken", "c"},
	})
	require.NoError(t, err)

	backend := &stubBackend{messages: []mq.Message{{ID: "1", Data: event}}}
	objects := &stubObjectStore{failOn: "broken"}
	w := New(mq.New(backend), storage.NewStorage(objects), quietLogger())

	require.NoError(t, w.Run(context.Background()))
	require.Len(t, backend.results, 1)
	assert.Error(t, backend.results[0], "a failed delete must surface for redelivery")
	assert.Equal(t, []string{"a"}, objects.deleted)
}
