package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soyeahso/agentclick/internal/hooks"
	"github.com/soyeahso/agentclick/internal/logging"
)

func TestClientQueueDropsSlowSubscriber(t *testing.T) {
	c := newClient(nil, "127.0.0.1:1", logging.Nop())
	f, err := eventFrame(hooks.EventHotkey, 1, nil)
	assert.NoError(t, err)

	for i := 0; i < sendQueue; i++ {
		assert.NoError(t, c.enqueue(f))
	}
	assert.ErrorIs(t, c.enqueue(f), errSlowClient)
	assert.ErrorIs(t, c.enqueue(f), ErrClientClosed)
}

func TestClientCloseIsIdempotent(t *testing.T) {
	c := newClient(nil, "127.0.0.1:1", logging.Nop())
	c.Close()
	c.Close()
	f, _ := eventFrame(hooks.EventHotkey, 1, nil)
	assert.ErrorIs(t, c.enqueue(f), ErrClientClosed)
}

func TestRegistryBroadcastUsesBusSeq(t *testing.T) {
	r := newClientRegistry(logging.Nop())
	a := newClient(nil, "a", logging.Nop())
	b := newClient(nil, "b", logging.Nop())
	r.add(a)
	r.add(b)
	assert.Equal(t, 2, r.Count())

	r.broadcast(hooks.Payload{Event: hooks.EventAgentChanged, Seq: 42, Data: map[string]any{"agent": "review"}})
	for _, c := range []*Client{a, b} {
		got := <-c.send
		assert.Equal(t, FrameTypeEvent, got.Type)
		assert.Equal(t, uint64(42), got.Seq)
		assert.JSONEq(t, `{"agent":"review"}`, string(got.Payload))
	}

	r.remove(a)
	r.remove(a)
	assert.Equal(t, 1, r.Count())
}

func TestEventFrameOmitsNilPayload(t *testing.T) {
	f, err := eventFrame(hooks.EventGatewayStop, 7, nil)
	assert.NoError(t, err)
	assert.Nil(t, f.Payload)
}
