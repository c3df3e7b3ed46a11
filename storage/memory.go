package storage

import (
	"context"
	"log"
	"sync"
	"time"
)

type memoryScope struct {
	values   map[string][]byte
	size     int
	lastUsed time.Time
}

// MemoryKV is an in-process KV. Whole scopes expire after ttl of inactivity
// once Sweep is called; a zero ttl disables expiry.
type MemoryKV struct {
	mu     sync.Mutex
	scopes map[string]*memoryScope
	quota  int
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryKV creates an in-memory KV. quota <= 0 disables the capacity limit.
func NewMemoryKV(quota int, ttl time.Duration) *MemoryKV {
	return &MemoryKV{
		scopes: make(map[string]*memoryScope),
		quota:  quota,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (m *MemoryKV) scope(name string, create bool) *memoryScope {
	s, ok := m.scopes[name]
	if !ok && create {
		s = &memoryScope{values: make(map[string][]byte)}
		m.scopes[name] = s
	}
	if s != nil {
		s.lastUsed = m.now()
	}
	return s
}

func (m *MemoryKV) Get(_ context.Context, scope, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.scope(scope, false)
	if s == nil {
		return nil, false, nil
	}
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryKV) Set(_ context.Context, scope, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.scope(scope, true)
	newSize := s.size + entrySize(key, value)
	if old, exists := s.values[key]; exists {
		newSize -= entrySize(key, old)
	}
	if m.quota > 0 && newSize > m.quota && !quotaExempt(key) {
		return ErrQuotaExceeded
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	s.values[key] = stored
	s.size = newSize
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.scope(scope, false)
	if s == nil {
		return nil
	}
	if v, ok := s.values[key]; ok {
		s.size -= entrySize(key, v)
		delete(s.values, key)
	}
	return nil
}

// Sweep drops scopes idle for longer than the ttl and returns how many were removed.
func (m *MemoryKV) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.ttl)
	removed := 0
	for name, s := range m.scopes {
		if s.lastUsed.Before(cutoff) {
			delete(m.scopes, name)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemoryKV) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				log.Printf("storage: expired %d idle session scope(s)", n)
			}
		}
	}
}

// entrySize approximates browser storage accounting: key plus value length.
func entrySize(key string, value []byte) int {
	return len(key) + len(value)
}
