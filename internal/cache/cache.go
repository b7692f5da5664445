package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"shopmate/backend/internal/domain"
)

// CartStore persists the in-progress cart of each account between requests.
type CartStore interface {
	Load(ctx context.Context, owner string) (*domain.CartSession, bool, error)
	Save(ctx context.Context, session domain.CartSession) error
	Delete(ctx context.Context, owner string) error
}

// SalesCache holds a short-lived snapshot of an account's sale history so that
// paging through the report does not refetch it on every request.
type SalesCache interface {
	Get(ctx context.Context, owner string) ([]domain.SaleRecord, bool, error)
	Set(ctx context.Context, owner string, records []domain.SaleRecord, ttl time.Duration) error
	Invalidate(ctx context.Context, owner string) error
}

type memoryCartEntry struct {
	session   domain.CartSession
	expiresAt time.Time
}

type MemoryCartStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryCartEntry
}

// NewMemoryCartStore keeps sessions in process. A zero ttl keeps them forever.
func NewMemoryCartStore(ttl time.Duration) *MemoryCartStore {
	return &MemoryCartStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryCartEntry),
	}
}

func (m *MemoryCartStore) Load(_ context.Context, owner string) (*domain.CartSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[owner]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		delete(m.entries, owner)
		return nil, false, nil
	}
	session := entry.session
	session.Lines = slices.Clone(entry.session.Lines)
	return &session, true, nil
}

func (m *MemoryCartStore) Save(_ context.Context, session domain.CartSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryCartEntry{session: session}
	entry.session.Lines = slices.Clone(session.Lines)
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.entries[session.Owner] = entry
	return nil
}

func (m *MemoryCartStore) Delete(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, owner)
	return nil
}

type NoopSalesCache struct{}

func (NoopSalesCache) Get(_ context.Context, _ string) ([]domain.SaleRecord, bool, error) {
	return nil, false, nil
}

func (NoopSalesCache) Set(_ context.Context, _ string, _ []domain.SaleRecord, _ time.Duration) error {
	return nil
}

func (NoopSalesCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
