package docstore

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Syntia28/nikos/pkg/logger"
)

// ChangeFeed fans out "collection changed" notifications to watchers of backends
// without a native snapshot stream.
type ChangeFeed interface {
	Publish(ctx context.Context, collection string)
	Subscribe(collection string, fn func()) (unsubscribe func())
	Close() error
}

type subscriberSet struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func()
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: map[string]map[int]func(){}}
}

// add registers fn and reports whether it is the first subscriber of collection.
func (s *subscriberSet) add(collection string, fn func()) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	set, ok := s.subs[collection]
	if !ok {
		set = map[int]func(){}
		s.subs[collection] = set
	}
	set[s.nextID] = fn
	return s.nextID, !ok
}

// remove drops the subscriber and reports whether collection has none left.
func (s *subscriberSet) remove(collection string, id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.subs[collection]
	if !ok {
		return false
	}
	delete(set, id)
	if len(set) == 0 {
		delete(s.subs, collection)
		return true
	}
	return false
}

func (s *subscriberSet) has(collection string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[collection]) > 0
}

func (s *subscriberSet) notify(collection string) {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.subs[collection]))
	for _, fn := range s.subs[collection] {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// LocalFeed notifies subscribers in-process and synchronously.
type LocalFeed struct {
	subs *subscriberSet
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: newSubscriberSet()}
}

func (f *LocalFeed) Publish(_ context.Context, collection string) {
	f.subs.notify(collection)
}

func (f *LocalFeed) Subscribe(collection string, fn func()) func() {
	id, _ := f.subs.add(collection, fn)
	var once sync.Once
	return func() {
		once.Do(func() { f.subs.remove(collection, id) })
	}
}

func (f *LocalFeed) Close() error { return nil }

// RedisPubSub is the slice of the redis client the feed relies on.
type RedisPubSub interface {
	Publish(ctx context.Context, channel string, payload any) error
	Subscribe(ctx context.Context, channels ...string) (*goredis.PubSub, error)
	ChangeFeedChannel(collection string) string
}

// subscription is the part of *goredis.PubSub a listener reads from.
type subscription interface {
	Channel(opts ...goredis.ChannelOption) <-chan *goredis.Message
	Close() error
}

const defaultResubscribeDelay = 2 * time.Second

// RedisFeed shares change notifications across API instances through redis pub/sub.
// One listener runs per collection while it has subscribers. Listener state and the
// subscriber count change under the same lock.
type RedisFeed struct {
	client           RedisPubSub
	logg             *logger.Logger
	subs             *subscriberSet
	subscribe        func(ctx context.Context, channel string) (subscription, error)
	resubscribeDelay time.Duration

	mu        sync.Mutex
	closed    bool
	listeners map[string]subscription
	pending   map[string]bool
}

func NewRedisFeed(client RedisPubSub, logg *logger.Logger) *RedisFeed {
	if logg == nil {
		logg = logger.Nop()
	}
	return &RedisFeed{
		client: client,
		logg:   logg,
		subs:   newSubscriberSet(),
		subscribe: func(ctx context.Context, channel string) (subscription, error) {
			ps, err := client.Subscribe(ctx, channel)
			if err != nil {
				return nil, err
			}
			return ps, nil
		},
		resubscribeDelay: defaultResubscribeDelay,
		listeners:        map[string]subscription{},
		pending:          map[string]bool{},
	}
}

func (f *RedisFeed) Publish(ctx context.Context, collection string) {
	if err := f.client.Publish(ctx, f.client.ChangeFeedChannel(collection), collection); err != nil {
		f.logg.Error(f.logg.WithField(ctx, "collection", collection), "change feed publish failed", err)
	}
}

func (f *RedisFeed) Subscribe(collection string, fn func()) func() {
	f.mu.Lock()
	id, _ := f.subs.add(collection, fn)
	f.armLocked(collection)
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.subs.remove(collection, id) {
				f.disarmLocked(collection)
			}
		})
	}
}

// armLocked starts the collection listener unless one is running or a retry is pending.
// A failed subscribe is retried after resubscribeDelay while subscribers remain.
func (f *RedisFeed) armLocked(collection string) {
	if f.closed || f.listeners[collection] != nil || f.pending[collection] {
		return
	}
	ctx := f.logg.WithField(context.Background(), "collection", collection)
	ps, err := f.subscribe(ctx, f.client.ChangeFeedChannel(collection))
	if err != nil {
		f.logg.Error(ctx, "change feed subscribe failed; retrying", err)
		f.pending[collection] = true
		time.AfterFunc(f.resubscribeDelay, func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.pending, collection)
			if f.subs.has(collection) {
				f.armLocked(collection)
			}
		})
		return
	}

	f.listeners[collection] = ps
	go func() {
		for range ps.Channel() {
			f.subs.notify(collection)
		}
	}()
}

func (f *RedisFeed) disarmLocked(collection string) {
	ps := f.listeners[collection]
	delete(f.listeners, collection)
	if ps != nil {
		if err := ps.Close(); err != nil {
			f.logg.Warn(f.logg.WithFields(context.Background(), map[string]any{
				"collection": collection,
				"error":      err.Error(),
			}), "change feed close failed")
		}
	}
}

func (f *RedisFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	var firstErr error
	for collection, ps := range f.listeners {
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(f.listeners, collection)
	}
	return firstErr
}
