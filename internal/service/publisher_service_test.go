package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"docflash-be/internal/pkg/logger"
	"docflash-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRelay struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingRelay) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingRelay) snapshot() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func TestPublishAndRelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	defer pubSub.Close()

	relay := &recordingRelay{}
	consumer := NewConsumerService(pubSub, "DOCUMENT_EVENTS", relay, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	publisher := NewPublisherService("DOCUMENT_EVENTS", pubSub)
	docID := uuid.New()
	require.NoError(t, publisher.Publish(ctx, events.NewDocumentFailed(docID, "job-1", "parse", "corrupt file")))

	require.Eventually(t, func() bool { return len(relay.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)

	got := relay.snapshot()[0]
	assert.Equal(t, events.DocumentFailed, got.EventType())
	assert.Equal(t, docID.String(), got.Payload()["document_id"])
	assert.Equal(t, "parse", got.Payload()["stage"])
	assert.Equal(t, "job-1", got.Payload()["job_id"])
}
