package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"docchat-client/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type broadcastSink struct {
	mu       sync.Mutex
	payloads []string
}

func (b *broadcastSink) Broadcast(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, string(payload))
}

func (b *broadcastSink) received() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.payloads...)
}

func TestSnapshotsReachBroadcaster(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8, BlockPublishUntilSubscriberAck: true}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sink := &broadcastSink{}
	consumer := NewConsumerService(pubSub, "workspace.test", sink, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	publisher := NewPublisherService("workspace.test", pubSub)
	require.NoError(t, publisher.Publish(ctx, []byte(`{"signed_in":false}`)))
	require.NoError(t, publisher.Publish(ctx, nil))
	require.NoError(t, publisher.Publish(ctx, []byte(`{"signed_in":true}`)))

	require.Eventually(t, func() bool { return len(sink.received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{`{"signed_in":false}`, `{"signed_in":true}`}, sink.received())
}

func TestConsumerDropsOutOfOrderSnapshots(t *testing.T) {
	sink := &broadcastSink{}
	cs := NewConsumerService(nil, "workspace.test", sink, logger.NewNopLogger()).(*consumerService)

	for _, seq := range []string{"2", "1", "3"} {
		msg := message.NewMessage(watermill.NewUUID(), []byte("snapshot-"+seq))
		msg.Metadata.Set(sequenceKey, seq)
		cs.processMessage(msg)
	}

	assert.Equal(t, []string{"snapshot-2", "snapshot-3"}, sink.received())
}
