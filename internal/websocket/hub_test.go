package websocket

import (
	"testing"
	"time"

	"docchat-client/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(h *Hub, buffer int) *Client {
	return &Client{hub: h, userId: uuid.New(), send: make(chan []byte, buffer)}
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("nothing delivered")
		return nil
	}
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	go hub.Run()

	a, b := testClient(hub, 4), testClient(hub, 4)
	hub.register <- a
	hub.register <- b
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Broadcast([]byte(`{"generation":1}`))
	assert.Equal(t, `{"generation":1}`, string(receive(t, a)))
	assert.Equal(t, `{"generation":1}`, string(receive(t, b)))
}

func TestLateClientGetsLastSnapshot(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	go hub.Run()

	hub.Broadcast([]byte(`{"generation":7}`))

	c := testClient(hub, 4)
	hub.register <- c
	assert.Equal(t, `{"generation":7}`, string(receive(t, c)))
}

func TestSlowClientIsDisconnected(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	go hub.Run()

	slow := testClient(hub, 1)
	hub.register <- slow
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast([]byte("one"))
	hub.Broadcast([]byte("two"))

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestLatestSkipsQueuedSnapshots(t *testing.T) {
	c := testClient(nil, 4)
	c.send <- []byte("two")
	c.send <- []byte("three")

	assert.Equal(t, "three", string(c.latest([]byte("one"))))
	assert.Empty(t, c.send)
}
