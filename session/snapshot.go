// Package session holds the ephemeral, per-tab state: the in-progress session
// snapshot and the pre-payment image backup.
package session

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/raushankrgupta/hair-director/models"
	"github.com/raushankrgupta/hair-director/storage"
)

// Snapshots reads and writes the snapshot of one browsing session.
type Snapshots struct {
	kv    storage.KV
	scope string
	now   func() time.Time
}

func NewSnapshots(kv storage.KV, scope string) *Snapshots {
	return &Snapshots{kv: kv, scope: scope, now: time.Now}
}

// Save overwrites the snapshot. Failures are logged, not returned.
func (s *Snapshots) Save(ctx context.Context, snap models.SessionSnapshot) {
	if snap.Timestamp.IsZero() {
		snap.Timestamp = s.now()
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		log.Printf("session: failed to encode snapshot for %s: %v", s.scope, err)
		return
	}
	if err := s.kv.Set(ctx, s.scope, storage.KeySnapshot, raw); err != nil {
		log.Printf("session: failed to save snapshot for %s: %v", s.scope, err)
	}
}

// Load returns the snapshot when it is resumable. A partial or unreadable
// snapshot is removed and reported as absent.
func (s *Snapshots) Load(ctx context.Context) (*models.SessionSnapshot, bool) {
	raw, found, err := s.kv.Get(ctx, s.scope, storage.KeySnapshot)
	if err != nil {
		log.Printf("session: failed to read snapshot for %s: %v", s.scope, err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	var snap models.SessionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil || !snap.Resumable() {
		log.Printf("session: discarding incomplete snapshot for %s", s.scope)
		s.Clear(ctx)
		return nil, false
	}
	return &snap, true
}

// Clear removes the snapshot. Clearing an absent snapshot is a no-op.
func (s *Snapshots) Clear(ctx context.Context) {
	if err := s.kv.Delete(ctx, s.scope, storage.KeySnapshot); err != nil {
		log.Printf("session: failed to clear snapshot for %s: %v", s.scope, err)
	}
}
