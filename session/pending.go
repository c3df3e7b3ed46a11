package session

import (
	"context"
	"encoding/json"
	"log"

	"github.com/raushankrgupta/hair-director/storage"
)

// PendingUpload is the image (and optional email) backed up before redirecting to checkout.
type PendingUpload struct {
	Image string `json:"image"` // data URI
	Email string `json:"email,omitempty"`
}

// BackupPending stores the pre-payment upload. It reports whether the write landed.
func (s *Snapshots) BackupPending(ctx context.Context, p PendingUpload) bool {
	raw, err := json.Marshal(p)
	if err != nil {
		return false
	}
	if err := s.kv.Set(ctx, s.scope, storage.KeyPendingImage, raw); err != nil {
		log.Printf("session: failed to back up pending image for %s: %v", s.scope, err)
		return false
	}
	return true
}

// TakePending returns and removes the pre-payment upload.
func (s *Snapshots) TakePending(ctx context.Context) (PendingUpload, bool) {
	raw, found, err := s.kv.Get(ctx, s.scope, storage.KeyPendingImage)
	if err != nil || !found {
		return PendingUpload{}, false
	}
	if err := s.kv.Delete(ctx, s.scope, storage.KeyPendingImage); err != nil {
		log.Printf("session: failed to remove pending image for %s: %v", s.scope, err)
	}
	var p PendingUpload
	if err := json.Unmarshal(raw, &p); err != nil || p.Image == "" {
		return PendingUpload{}, false
	}
	return p, true
}

// Marker reads a small ephemeral string value such as a one-shot flag.
func (s *Snapshots) Marker(ctx context.Context, key string) string {
	raw, found, err := s.kv.Get(ctx, s.scope, key)
	if err != nil || !found {
		return ""
	}
	return string(raw)
}

// SetMarker writes (value != "") or removes (value == "") an ephemeral marker.
func (s *Snapshots) SetMarker(ctx context.Context, key, value string) {
	var err error
	if value == "" {
		err = s.kv.Delete(ctx, s.scope, key)
	} else {
		err = s.kv.Set(ctx, s.scope, key, []byte(value))
	}
	if err != nil {
		log.Printf("session: failed to update %s for %s: %v", key, s.scope, err)
	}
}
