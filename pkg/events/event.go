// Package events is the envelope shared by activity producers and the bus.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is anything that can travel on the activity bus.
type Event interface {
	// EventType is the upper-case code, e.g. "SESSION_CREATED".
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// StringField reads a string payload field; missing or non-string values
// yield "".
func StringField(e Event, key string) string {
	s, _ := e.Payload()[key].(string)
	return s
}

// UUIDField reads a payload field holding a uuid string. Anything else
// yields uuid.Nil.
func UUIDField(e Event, key string) uuid.UUID {
	id, err := uuid.Parse(StringField(e, key))
	if err != nil {
		return uuid.Nil
	}
	return id
}
