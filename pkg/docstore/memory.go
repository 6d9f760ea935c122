package docstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryEntry struct {
	doc Document
	seq uint64
}

// MemoryStore keeps collections in process memory. Used by tests and local runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]memoryEntry
	seq  uint64
	feed ChangeFeed
}

// NewMemoryStore builds an empty store; a nil feed falls back to a LocalFeed.
func NewMemoryStore(feed ChangeFeed) *MemoryStore {
	if feed == nil {
		feed = NewLocalFeed()
	}
	return &MemoryStore{
		data: map[string]map[string]memoryEntry{},
		feed: feed,
	}
}

func (m *MemoryStore) Create(ctx context.Context, collection string, doc Document) (Document, error) {
	body, err := normalize(stripID(doc))
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()

	m.mu.Lock()
	m.seq++
	coll, ok := m.data[collection]
	if !ok {
		coll = map[string]memoryEntry{}
		m.data[collection] = coll
	}
	coll[id] = memoryEntry{doc: body, seq: m.seq}
	m.mu.Unlock()

	m.feed.Publish(ctx, collection)
	return m.GetByID(ctx, collection, id)
}

func (m *MemoryStore) GetAll(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(collection, func(Document) bool { return true })
}

func (m *MemoryStore) GetByID(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	entry, ok := m.data[collection][id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	body, err := normalize(entry.doc)
	if err != nil {
		return nil, err
	}
	return withID(body, id), nil
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, fields Document) error {
	patch, err := normalize(stripID(fields))
	if err != nil {
		return err
	}

	m.mu.Lock()
	entry, ok := m.data[collection][id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	merged := copyDocument(entry.doc)
	for k, v := range patch {
		merged[k] = v
	}
	m.data[collection][id] = memoryEntry{doc: merged, seq: entry.seq}
	m.mu.Unlock()

	m.feed.Publish(ctx, collection)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	_, ok := m.data[collection][id]
	if ok {
		delete(m.data[collection], id)
	}
	m.mu.Unlock()

	if ok {
		m.feed.Publish(ctx, collection)
	}
	return nil
}

func (m *MemoryStore) QueryByField(_ context.Context, collection, field string, value any) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(collection, func(doc Document) bool { return matchesField(doc, field, value) })
}

func (m *MemoryStore) Watch(ctx context.Context, collection, field string, value any, fn WatchFunc) (func(), error) {
	return watchViaFeed(ctx, m.feed, m, collection, field, value, fn)
}

// RunInTx applies fn to a private copy and swaps it in only when fn succeeds.
// Other writers wait for the transaction to finish.
func (m *MemoryStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	rec := &recordingFeed{}

	m.mu.Lock()
	tx := &MemoryStore{
		data: cloneData(m.data),
		seq:  m.seq,
		feed: rec,
	}
	if err := fn(tx); err != nil {
		m.mu.Unlock()
		return err
	}
	m.data = tx.data
	m.seq = tx.seq
	m.mu.Unlock()

	rec.flush(ctx, m.feed)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return m.feed.Close() }

// snapshot must be called with m.mu held.
func (m *MemoryStore) snapshot(collection string, keep func(Document) bool) ([]Document, error) {
	entries := make([]struct {
		id string
		memoryEntry
	}, 0, len(m.data[collection]))
	for id, entry := range m.data[collection] {
		if !keep(entry.doc) {
			continue
		}
		entries = append(entries, struct {
			id string
			memoryEntry
		}{id, entry})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]Document, 0, len(entries))
	for _, e := range entries {
		body, err := normalize(e.doc)
		if err != nil {
			return nil, err
		}
		out = append(out, withID(body, e.id))
	}
	return out, nil
}

func cloneData(src map[string]map[string]memoryEntry) map[string]map[string]memoryEntry {
	out := make(map[string]map[string]memoryEntry, len(src))
	for coll, docs := range src {
		copied := make(map[string]memoryEntry, len(docs))
		for id, entry := range docs {
			copied[id] = memoryEntry{doc: copyDocument(entry.doc), seq: entry.seq}
		}
		out[coll] = copied
	}
	return out
}
