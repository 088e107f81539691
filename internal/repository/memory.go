package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrQuotaExceeded is returned when a write would grow the store past its byte quota.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

const subscriberBuffer = 16

type memoryShared struct {
	mu          sync.Mutex
	values      map[string]string
	quota       int
	subscribers []*memorySubscriber
}

type memorySubscriber struct {
	origin string
	ch     chan string
}

// MemoryStore is an in-process key-value store. Handles created with Attach share
// the same data and receive each other's change notifications, like browser tabs
// of one origin.
type MemoryStore struct {
	shared *memoryShared
	origin string
}

// NewMemoryStore creates an empty store; quotaBytes <= 0 disables the quota.
func NewMemoryStore(quotaBytes int) *MemoryStore {
	return &MemoryStore{
		shared: &memoryShared{
			values: make(map[string]string),
			quota:  quotaBytes,
		},
		origin: uuid.NewString(),
	}
}

// Attach returns another handle on the same data with its own origin.
func (s *MemoryStore) Attach() *MemoryStore {
	return &MemoryStore{shared: s.shared, origin: uuid.NewString()}
}

func (s *MemoryStore) Origin() string {
	return s.origin
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	val, ok := s.shared.values[key]
	return val, ok, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

func (s *MemoryStore) SetMany(ctx context.Context, entries map[string]string) error {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()

	if s.shared.quota > 0 && s.shared.sizeWith(entries) > s.shared.quota {
		return ErrQuotaExceeded
	}

	for key, value := range entries {
		s.shared.values[key] = value
	}
	for key := range entries {
		s.shared.notify(s.origin, key)
	}
	return nil
}

// Subscribe delivers keys written by other handles until ctx is done.
// Notifications are dropped when the subscriber falls behind; a reader
// that reloads everything on each key loses nothing by that.
func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan string, error) {
	sub := &memorySubscriber{origin: s.origin, ch: make(chan string, subscriberBuffer)}

	s.shared.mu.Lock()
	s.shared.subscribers = append(s.shared.subscribers, sub)
	s.shared.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.shared.mu.Lock()
		defer s.shared.mu.Unlock()
		for i, existing := range s.shared.subscribers {
			if existing == sub {
				s.shared.subscribers = append(s.shared.subscribers[:i], s.shared.subscribers[i+1:]...)
				break
			}
		}
		close(sub.ch)
	}()

	return sub.ch, nil
}

// sizeWith must be called with mu held.
func (m *memoryShared) sizeWith(entries map[string]string) int {
	size := 0
	for key, value := range m.values {
		if next, ok := entries[key]; ok {
			value = next
		}
		size += len(key) + len(value)
	}
	for key, value := range entries {
		if _, ok := m.values[key]; !ok {
			size += len(key) + len(value)
		}
	}
	return size
}

// notify must be called with mu held.
func (m *memoryShared) notify(origin, key string) {
	for _, sub := range m.subscribers {
		if sub.origin == origin {
			continue
		}
		select {
		case sub.ch <- key:
		default:
		}
	}
}
