package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obligo/internal/compliance/models"
	id "obligo/pkg/domain"
	"obligo/pkg/testutil"
)

func sampleEvent(instanceID id.InstanceID) Event {
	return Event{
		OccurredAt: testutil.Date(2025, time.February, 1),
		TenantID:   id.NewTenantID(),
		InstanceID: instanceID,
		Actor:      SystemActor,
		Action:     ActionRecompute,
		FromStatus: models.StatusInProgress,
		ToStatus:   models.StatusInProgress,
		FromRAG:    models.RAGGreen,
		ToRAG:      models.RAGAmber,
	}
}

func TestChannelPublisherDropsWhenFull(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	publisher, inbox := NewChannelPublisher(logger, 1)
	instanceID := id.NewInstanceID()

	publisher.Emit(context.Background(), sampleEvent(instanceID))
	publisher.Emit(context.Background(), sampleEvent(instanceID))

	assert.Len(t, inbox, 1)
	assert.Contains(t, buf.String(), "audit buffer full")
}

func TestWorkerDrainsToStore(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	store := NewMemoryStore()
	publisher, inbox := NewChannelPublisher(logger, 16)
	worker := NewWorker(store, inbox, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	instanceID := id.NewInstanceID()
	publisher.Emit(ctx, sampleEvent(instanceID))
	publisher.Emit(ctx, sampleEvent(instanceID))

	require.Eventually(t, func() bool {
		events, err := store.ListByInstance(context.Background(), instanceID)
		return err == nil && len(events) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	events, err := store.ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Equal(t, ActionRecompute, events[0].Action)
	assert.Equal(t, models.RAGAmber, events[0].ToRAG)
}

type failingStore struct{}

func (failingStore) Append(context.Context, Event) error {
	return errors.New("disk full")
}

// syncBuffer guards the log buffer against the worker goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Contains(s string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Contains(b.buf.Bytes(), []byte(s))
}

func TestWorkerLogsStoreFailures(t *testing.T) {
	buf := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))

	publisher, inbox := NewChannelPublisher(logger, 16)
	worker := NewWorker(failingStore{}, inbox, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	publisher.Emit(ctx, sampleEvent(id.NewInstanceID()))

	require.Eventually(t, func() bool {
		return buf.Contains("failed to persist audit event")
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestMemoryStoreFiltersByInstance(t *testing.T) {
	store := NewMemoryStore()
	a := id.NewInstanceID()
	b := id.NewInstanceID()

	require.NoError(t, store.Append(context.Background(), sampleEvent(a)))
	require.NoError(t, store.Append(context.Background(), sampleEvent(b)))
	require.NoError(t, store.Append(context.Background(), sampleEvent(a)))

	events, err := store.ListByInstance(context.Background(), a)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
