// Package premium implements the single-use analysis entitlement:
// UNSET -> GRANTED on checkout return (or an explicit grant), GRANTED -> UNSET
// once per analysis attempt whether the attempt succeeded or not.
package premium

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"slices"
	"time"

	"github.com/raushankrgupta/hair-director/models"
	"github.com/raushankrgupta/hair-director/storage"
)

// ErrCheckoutRedeemed is returned when a checkout id has already granted an entitlement.
var ErrCheckoutRedeemed = errors.New("checkout already redeemed")

const redeemedLimit = 20

// Gate is the entitlement record of one device.
type Gate struct {
	kv    storage.KV
	scope string
	now   func() time.Time
}

func NewGate(kv storage.KV, scope string) *Gate {
	return &Gate{kv: kv, scope: scope, now: time.Now}
}

// Status returns the current record; a missing or unreadable record is UNSET.
func (g *Gate) Status(ctx context.Context) models.PremiumStatus {
	raw, found, err := g.kv.Get(ctx, g.scope, storage.KeyPremium)
	if err != nil {
		log.Printf("premium: failed to read status for %s: %v", g.scope, err)
		return models.PremiumStatus{}
	}
	if !found {
		return models.PremiumStatus{}
	}
	var status models.PremiumStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		log.Printf("premium: ignoring unreadable status for %s: %v", g.scope, err)
		return models.PremiumStatus{}
	}
	return status
}

// IsGranted gates the start of an analysis attempt.
func (g *Gate) IsGranted(ctx context.Context) bool {
	return g.Status(ctx).IsPremium
}

// Grant moves the gate to GRANTED, recording the optional email and checkout id.
// A checkout id grants at most once, so reloading the return URL does not re-grant.
func (g *Gate) Grant(ctx context.Context, email, checkoutID string) error {
	redeemed := g.redeemed(ctx)
	if checkoutID != "" && slices.Contains(redeemed, checkoutID) {
		return ErrCheckoutRedeemed
	}

	purchased := g.now()
	status := models.PremiumStatus{
		IsPremium:    true,
		PurchaseDate: &purchased,
		Email:        email,
		CheckoutID:   checkoutID,
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return err
	}
	if err := g.kv.Set(ctx, g.scope, storage.KeyPremium, raw); err != nil {
		return err
	}
	log.Printf("premium: granted for %s (checkout %q)", g.scope, checkoutID)

	if checkoutID != "" {
		redeemed = append([]string{checkoutID}, redeemed...)
		if len(redeemed) > redeemedLimit {
			redeemed = redeemed[:redeemedLimit]
		}
		raw, _ := json.Marshal(redeemed)
		if err := g.kv.Set(ctx, g.scope, storage.KeyRedeemed, raw); err != nil {
			log.Printf("premium: failed to record checkout %q for %s: %v", checkoutID, g.scope, err)
		}
	}
	return nil
}

func (g *Gate) redeemed(ctx context.Context) []string {
	raw, found, err := g.kv.Get(ctx, g.scope, storage.KeyRedeemed)
	if err != nil || !found {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil
	}
	return ids
}

// Consume spends the entitlement. It is called exactly once after every attempt.
func (g *Gate) Consume(ctx context.Context) {
	if err := g.kv.Delete(ctx, g.scope, storage.KeyPremium); err != nil {
		log.Printf("premium: failed to consume entitlement for %s: %v", g.scope, err)
		return
	}
	log.Printf("premium: entitlement consumed for %s", g.scope)
}
