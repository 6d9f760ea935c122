package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/Syntia28/nikos/pkg/logger"
)

const (
	defaultQueueSize      = 256
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 5
	baseBackoff           = 200 * time.Millisecond
	maxBackoff            = 5 * time.Second
	jitterWindow          = 100 * time.Millisecond
)

var errQueueFull = errors.New("event forwarder queue is full")

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// ForwarderParams configures a Forwarder.
type ForwarderParams struct {
	Publisher   *gcppubsub.Publisher
	Logger      *logger.Logger
	QueueSize   int
	MaxAttempts int
}

// Forwarder relays selected bus events to a Pub/Sub topic off the emitting goroutine.
type Forwarder struct {
	pub         publisher
	logg        *logger.Logger
	queue       chan Envelope
	maxAttempts int
	timeout     time.Duration
	jitter      *rand.Rand
}

func NewForwarder(params ForwarderParams) (*Forwarder, error) {
	if params.Publisher == nil {
		return nil, errors.New("pubsub publisher is required")
	}
	return newForwarder(&gcpPublisher{Publisher: params.Publisher}, params)
}

func newForwarder(pub publisher, params ForwarderParams) (*Forwarder, error) {
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	size := params.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &Forwarder{
		pub:         pub,
		logg:        params.Logger,
		queue:       make(chan Envelope, size),
		maxAttempts: attempts,
		timeout:     defaultPublishTimeout,
		jitter:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Attach subscribes the forwarder to names on bus; the returned func detaches it.
func (f *Forwarder) Attach(bus *Bus, names ...string) func() {
	unsubs := make([]func(), 0, len(names))
	for _, name := range names {
		unsubs = append(unsubs, bus.Subscribe(name, f.enqueue))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (f *Forwarder) enqueue(_ context.Context, evt Event) error {
	env, err := NewEnvelope(evt)
	if err != nil {
		return fmt.Errorf("encode %s: %w", evt.Name, err)
	}
	select {
	case f.queue <- env:
		return nil
	default:
		return errQueueFull
	}
}

// Run publishes queued envelopes until ctx ends.
func (f *Forwarder) Run(ctx context.Context) error {
	f.logg.Info(ctx, "event forwarder started")
	for {
		select {
		case <-ctx.Done():
			f.logg.Info(ctx, "event forwarder stopped")
			return ctx.Err()
		case env := <-f.queue:
			f.deliver(ctx, env)
		}
	}
}

func (f *Forwarder) deliver(ctx context.Context, env Envelope) {
	fields := map[string]any{
		"event_id":   env.EventID,
		"event_type": env.EventType,
	}
	backoff := baseBackoff
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		err := f.publish(ctx, env)
		if err == nil {
			f.logg.Debug(f.logg.WithFields(ctx, fields), "event forwarded")
			return
		}
		fields["attempt_count"] = attempt
		if attempt == f.maxAttempts {
			f.logg.Error(f.logg.WithFields(ctx, fields), "event dropped after max attempts", err)
			return
		}
		f.logg.Warn(f.logg.WithField(f.logg.WithFields(ctx, fields), "error", err.Error()), "event publish failed")
		if sleepErr := sleep(ctx, f.withJitter(backoff)); sleepErr != nil {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

func (f *Forwarder) publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":    env.EventID,
			"event_type":  env.EventType,
			"occurred_at": env.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	result := f.pub.Publish(publishCtx, msg)
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	_, err = result.Get(publishCtx)
	return err
}

func (f *Forwarder) withJitter(d time.Duration) time.Duration {
	return d + time.Duration(f.jitter.Int63n(int64(jitterWindow)))
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}
