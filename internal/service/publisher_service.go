package service

import (
	"context"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// sequenceKey carries a per-publisher counter in message metadata. gochannel
// delivers each message on its own goroutine, so consumers use it to drop
// snapshots that arrive late.
const sequenceKey = "sequence"

type IPublisherService interface {
	Publish(ctx context.Context, payload []byte) error
}

type publisherService struct {
	pubSub    *gochannel.GoChannel
	topicName string

	mu  sync.Mutex
	seq uint64
}

func NewPublisherService(topicName string, pubSub *gochannel.GoChannel) IPublisherService {
	return &publisherService{
		pubSub:    pubSub,
		topicName: topicName,
	}
}

func (p *publisherService) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(sequenceKey, strconv.FormatUint(p.seq, 10))
	msg.SetContext(ctx)
	return p.pubSub.Publish(p.topicName, msg)
}
