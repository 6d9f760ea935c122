package docstore

import (
	"context"
	"sync"
)

type fieldQuerier interface {
	QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error)
}

// watchViaFeed re-runs the equality query whenever the feed reports a write to collection.
func watchViaFeed(ctx context.Context, feed ChangeFeed, q fieldQuerier, collection, field string, value any, fn WatchFunc) (func(), error) {
	if fn == nil {
		return nil, errNilWatchFunc
	}
	ctx, cancel := context.WithCancel(ctx)

	var mu sync.Mutex
	deliver := func() {
		if ctx.Err() != nil {
			return
		}
		docs, err := q.QueryByField(ctx, collection, field, value)
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		fn(docs, err)
	}

	unsubscribe := feed.Subscribe(collection, deliver)
	deliver()

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return func() {
		cancel()
		unsubscribe()
	}, nil
}

// recordingFeed buffers collections written inside a transaction until commit.
type recordingFeed struct {
	mu          sync.Mutex
	collections []string
}

func (r *recordingFeed) Publish(_ context.Context, collection string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.collections {
		if c == collection {
			return
		}
	}
	r.collections = append(r.collections, collection)
}

func (r *recordingFeed) Subscribe(string, func()) func() { return func() {} }

func (r *recordingFeed) Close() error { return nil }

func (r *recordingFeed) flush(ctx context.Context, to ChangeFeed) {
	r.mu.Lock()
	pending := r.collections
	r.collections = nil
	r.mu.Unlock()
	for _, c := range pending {
		to.Publish(ctx, c)
	}
}
