package synchronizer

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// KeyedLock serializes work per session. Waiting respects ctx.
type KeyedLock struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{slots: make(map[uuid.UUID]*slot)}
}

// Acquire blocks until the key is free or ctx is done. The returned func
// releases the key and must be called exactly once.
func (k *KeyedLock) Acquire(ctx context.Context, key uuid.UUID) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.waiters++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.leave(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.leave(key, s)
		})
	}, nil
}

func (k *KeyedLock) leave(key uuid.UUID, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.waiters--
	if s.waiters == 0 {
		delete(k.slots, key)
	}
}
