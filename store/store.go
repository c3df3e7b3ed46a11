// Package store keeps the per-device History and Saved collections on top of a
// storage.KV. Every mutation is a read-modify-write of the whole collection.
// Write failures (quota exceeded included) are logged here and never returned,
// so the operation that triggered the write can carry on.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/raushankrgupta/hair-director/storage"
)

var ErrNotFound = errors.New("item not found")

// ImageArchive keeps full-resolution copies of history images outside the KV.
type ImageArchive interface {
	Put(ctx context.Context, key, dataURI string) error
	URL(ctx context.Context, key string) (string, error)
}

// Options bounds collection sizes and stored image dimensions.
type Options struct {
	HistoryMaxItems  int
	SavedMaxItems    int
	ImageMaxSide     int
	ThumbnailMaxSide int
	Archive          ImageArchive
}

// Local is the persistence store for one device.
type Local struct {
	kv    storage.KV
	scope string
	opts  Options
	now   func() time.Time
}

// New returns the store for the device identified by scope.
func New(kv storage.KV, scope string, opts Options) *Local {
	return &Local{kv: kv, scope: scope, opts: opts, now: time.Now}
}

func loadList[T any](ctx context.Context, l *Local, key string) []T {
	raw, found, err := l.kv.Get(ctx, l.scope, key)
	if err != nil {
		log.Printf("store: failed to read %s for %s: %v", key, l.scope, err)
		return nil
	}
	if !found {
		return nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Printf("store: discarding unreadable %s for %s: %v", key, l.scope, err)
		return nil
	}
	return items
}

// saveList reports whether the write landed.
func saveList[T any](ctx context.Context, l *Local, key string, items []T) bool {
	raw, err := json.Marshal(items)
	if err != nil {
		log.Printf("store: failed to encode %s for %s: %v", key, l.scope, err)
		return false
	}
	if err := l.kv.Set(ctx, l.scope, key, raw); err != nil {
		if errors.Is(err, storage.ErrQuotaExceeded) {
			log.Printf("store: quota exceeded writing %s for %s, item not persisted", key, l.scope)
		} else {
			log.Printf("store: failed to write %s for %s: %v", key, l.scope, err)
		}
		return false
	}
	return true
}

func (l *Local) remove(ctx context.Context, key string) {
	if err := l.kv.Delete(ctx, l.scope, key); err != nil {
		log.Printf("store: failed to clear %s for %s: %v", key, l.scope, err)
	}
}
