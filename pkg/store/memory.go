package store

import (
	"context"
	"sync"

	"github.com/atomicdeploy/form-receipts/pkg/submission"
)

// MemoryStore keeps submissions in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items []submission.Submission
	byID  map[string]int
	opts  options
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]int),
		opts: buildOptions(opts),
	}
}

// Create implements Store.
func (m *MemoryStore) Create(ctx context.Context, in submission.Input) (submission.Submission, error) {
	in, err := prepare(in)
	if err != nil {
		return submission.Submission{}, err
	}

	sub := submission.New(m.opts.newID(), in, m.opts.now())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[sub.ID] = len(m.items)
	m.items = append(m.items, sub)

	return sub, nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context) ([]submission.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.items), nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, id string) (submission.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byID[id]
	if !ok {
		return submission.Submission{}, ErrNotFound
	}
	return m.items[idx], nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
