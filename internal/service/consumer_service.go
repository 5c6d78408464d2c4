package service

import (
	"context"
	"strconv"
	"sync"

	"docchat-client/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Broadcaster fans a payload out to connected renderers.
type Broadcaster interface {
	Broadcast(payload []byte)
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	target    Broadcaster
	logger    logger.ILogger

	mu   sync.Mutex
	last uint64
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	target Broadcaster,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		target:    target,
		logger:    log,
	}
}

// Consume forwards workspace snapshots until ctx is done.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	if len(msg.Payload) == 0 {
		cs.logger.Warn("ConsumerService", "Dropping empty workspace message", map[string]interface{}{
			"message_id": msg.UUID,
		})
		msg.Ack()
		return
	}
	defer msg.Ack()

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if seq, err := strconv.ParseUint(msg.Metadata.Get(sequenceKey), 10, 64); err == nil {
		if seq <= cs.last {
			cs.logger.Debug("ConsumerService", "Dropping stale workspace snapshot", map[string]interface{}{
				"sequence": seq,
				"last":     cs.last,
			})
			return
		}
		cs.last = seq
	}
	cs.target.Broadcast(msg.Payload)
}
