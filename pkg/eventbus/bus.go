package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Syntia28/nikos/pkg/logger"
)

// Storefront event names.
const (
	RatingSubmitted  = "rating.submitted"
	OrderCreated     = "order.created"
	AuthStateChanged = "auth.state_changed"
)

// Event is what handlers receive.
type Event struct {
	Name       string
	Payload    any
	OccurredAt time.Time
}

// Handler reacts to an event. Returned errors are logged, never propagated to the emitter.
type Handler func(ctx context.Context, evt Event) error

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is an in-process publish/subscribe hub. Handlers run synchronously on the
// emitting goroutine in subscription order.
type Bus struct {
	logg *logger.Logger

	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]subscription
}

func New(logg *logger.Logger) *Bus {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Bus{logg: logg, handlers: map[string][]subscription{}}
}

// Subscribe registers h for name and returns an idempotent unsubscribe func.
func (b *Bus) Subscribe(name string, h Handler) func() {
	if h == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(name, id) })
	}
}

func (b *Bus) unsubscribe(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[name]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		next := make([]subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(b.handlers, name)
		} else {
			b.handlers[name] = next
		}
		return
	}
}

// Emit fans payload out to every current subscriber of name.
func (b *Bus) Emit(ctx context.Context, name string, payload any) {
	if ctx == nil {
		ctx = context.Background()
	}
	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[name]...)
	b.mu.RUnlock()
	if len(subs) == 0 {
		return
	}

	evt := Event{Name: name, Payload: payload, OccurredAt: time.Now().UTC()}
	for _, s := range subs {
		b.dispatch(ctx, s.handler, evt)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logg.Error(b.logg.WithField(ctx, "event", evt.Name), "event handler panicked", fmt.Errorf("panic: %v", r))
		}
	}()
	if err := h(ctx, evt); err != nil {
		b.logg.Error(b.logg.WithField(ctx, "event", evt.Name), "event handler failed", err)
	}
}
