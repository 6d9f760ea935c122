package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/require"

	"github.com/Syntia28/nikos/pkg/logger"
)

type fakePublishResult struct {
	err error
}

func (r fakePublishResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

type fakePublisher struct {
	mu       sync.Mutex
	results  []error
	messages []*gcppubsub.Message
	done     chan struct{}
}

func (p *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	var err error
	if len(p.results) > 0 {
		err = p.results[0]
		p.results = p.results[1:]
	}
	if err == nil && p.done != nil {
		close(p.done)
		p.done = nil
	}
	return fakePublishResult{err: err}
}

func TestForwarderPublishesEnvelopeWithRetry(t *testing.T) {
	pub := &fakePublisher{results: []error{errors.New("transient")}, done: make(chan struct{})}
	done := pub.done
	fwd, err := newForwarder(pub, ForwarderParams{Logger: logger.Nop(), MaxAttempts: 3})
	require.NoError(t, err)

	bus := New(logger.Nop())
	detach := fwd.Attach(bus, OrderCreated)
	defer detach()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = fwd.Run(ctx) }()

	bus.Emit(ctx, OrderCreated, map[string]any{"orderId": "o-1"})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("event was not forwarded")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.messages, 2)
	msg := pub.messages[1]
	require.Equal(t, OrderCreated, msg.Attributes["event_type"])

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	require.Equal(t, envelopeVersion, env.Version)
	require.Equal(t, msg.Attributes["event_id"], env.EventID)
	require.JSONEq(t, `{"orderId":"o-1"}`, string(env.Data))
}

func TestForwarderQueueFull(t *testing.T) {
	fwd, err := newForwarder(&fakePublisher{}, ForwarderParams{Logger: logger.Nop(), QueueSize: 1})
	require.NoError(t, err)

	require.NoError(t, fwd.enqueue(context.Background(), Event{Name: RatingSubmitted}))
	require.ErrorIs(t, fwd.enqueue(context.Background(), Event{Name: RatingSubmitted}), errQueueFull)
}

func TestNewForwarderRequiresDeps(t *testing.T) {
	_, err := NewForwarder(ForwarderParams{Logger: logger.Nop()})
	require.Error(t, err)
	_, err = newForwarder(&fakePublisher{}, ForwarderParams{})
	require.Error(t, err)
}
