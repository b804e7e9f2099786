package storage

import (
	"container/list"
	"context"
	"sync"
)

// MemoryStore is a bounded LRU. A capacity of zero keeps nothing.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

type memoryItem struct {
	key   string
	entry Entry
}

func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.items[key]
	if !ok {
		return Entry{}, false, nil
	}
	m.order.MoveToFront(el)
	e := el.Value.(*memoryItem).entry
	return Entry{Column: e.Column, Scores: cloneScores(e.Scores)}, true, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capacity <= 0 {
		return nil
	}
	e = Entry{Column: e.Column, Scores: cloneScores(e.Scores)}
	if el, ok := m.items[key]; ok {
		el.Value.(*memoryItem).entry = e
		m.order.MoveToFront(el)
		return nil
	}
	m.items[key] = m.order.PushFront(&memoryItem{key: key, entry: e})
	for m.order.Len() > m.capacity {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.items, oldest.Value.(*memoryItem).key)
	}
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *MemoryStore) Close() error { return nil }
