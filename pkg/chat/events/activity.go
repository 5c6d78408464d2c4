// Package events names the activity the chat core reports and forwards it to
// an optional bus.
package events

import (
	"context"
	"sync"
	"time"

	"docchat-client/internal/pkg/logger"
	"docchat-client/pkg/events"

	"github.com/google/uuid"
)

const (
	SessionCreated    = "SESSION_CREATED"
	SessionDeleted    = "SESSION_DELETED"
	DocumentsAttached = "DOCUMENTS_ATTACHED"
	MessageExchanged  = "MESSAGE_EXCHANGED"
	SignedOut         = "SIGNED_OUT"
)

// Publisher is satisfied by *nats.Publisher.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Nop struct{}

func (Nop) Publish(context.Context, events.Event) error { return nil }

// Emitter publishes activity best-effort. Failures are logged, never returned.
type Emitter struct {
	publisher Publisher
	origin    string
	logger    logger.ILogger
	timeout   time.Duration
}

// NewEmitter tags every event with origin so an instance can ignore its own
// activity when it reads the bus back.
func NewEmitter(publisher Publisher, origin string, log logger.ILogger) *Emitter {
	if publisher == nil {
		publisher = Nop{}
	}
	return &Emitter{
		publisher: publisher,
		origin:    origin,
		logger:    log,
		timeout:   2 * time.Second,
	}
}

func (e *Emitter) Origin() string {
	return e.origin
}

func (e *Emitter) Emit(ctx context.Context, eventType string, userId, sessionId uuid.UUID, details map[string]interface{}) {
	data := map[string]interface{}{
		"user_id": userId.String(),
		"origin":  e.origin,
	}
	if sessionId != uuid.Nil {
		data["session_id"] = sessionId.String()
	}
	for k, v := range details {
		data[k] = v
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	evt := events.BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
	if err := e.publisher.Publish(ctx, evt); err != nil {
		e.logger.Warn("ActivityEmitter", "Failed to publish activity", map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
	}
}

// Recorder keeps every published event; tests use it.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *Recorder) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *Recorder) Types() []string {
	evts := r.Events()
	out := make([]string, len(evts))
	for i, e := range evts {
		out[i] = e.EventType()
	}
	return out
}
