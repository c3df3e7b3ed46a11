// Package storage provides the key-value media behind device and session state.
// A scope is a device id (durable) or a session id (ephemeral).
package storage

import (
	"context"
	"errors"
)

// Durable keys, one set per device.
const (
	KeyHistory  = "hair_director_history"
	KeySaved    = "hair_director_saved"
	KeyPremium  = "hair_director_premium"
	KeyRedeemed = "hair_director_redeemed_checkouts"
)

// Ephemeral keys, one set per browsing session.
const (
	KeySnapshot     = "hair_director_session"
	KeyAutoStart    = "hair_director_auto_start"
	KeyAutoExported = "hair_director_auto_exported"
	KeyPendingImage = "hair_director_pending_image"
)

var (
	// ErrQuotaExceeded is returned by Set when the write would push the scope over its byte quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// quotaExempt reports keys that are written even when the scope is full.
// The entitlement records are tiny and a paid grant must not fail on a full device.
func quotaExempt(key string) bool {
	return key == KeyPremium || key == KeyRedeemed
}

// KV is a scoped key-value store with a per-scope capacity limit. The premium
// and redeemed-checkout keys are exempt from the limit.
// Get reports found=false for a missing key without an error.
type KV interface {
	Get(ctx context.Context, scope, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, scope, key string, value []byte) error
	Delete(ctx context.Context, scope, key string) error
}
