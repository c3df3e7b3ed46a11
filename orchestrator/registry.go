package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"
)

// Builder assembles a session for a device and browsing session.
type Builder func(deviceID, sessionID string) *Session

// Registry holds the live sessions, one per (device, session) pair.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	build    Builder
	ttl      time.Duration
	now      func() time.Time
}

func NewRegistry(build Builder, ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		build:    build,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the session, creating it on first use.
func (r *Registry) Get(deviceID, sessionID string) *Session {
	key := deviceID + "/" + sessionID
	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		s = r.build(deviceID, sessionID)
		r.sessions[key] = s
	}
	r.mu.Unlock()

	s.touch()
	return s
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the ttl. Busy sessions are kept.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, s := range r.sessions {
		lastSeen, busy := s.idleSince()
		if !busy && lastSeen.Before(cutoff) {
			delete(r.sessions, key)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				log.Printf("orchestrator: swept %d idle sessions", n)
			}
		}
	}
}

// Wait blocks until background work of every live session has finished.
func (r *Registry) Wait() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Wait()
	}
}
