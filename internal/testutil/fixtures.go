package testutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/buildin7days/entitlements/internal/domain"
)

// LemonPayload builds a webhook body in the shape Lemon Squeezy sends for
// orders. A zero variant omits first_order_item entirely.
func LemonPayload(t *testing.T, event, email string, variant int64) []byte {
	t.Helper()

	attrs := map[string]any{
		"user_email": email,
	}
	if variant != 0 {
		attrs["first_order_item"] = map[string]any{"variant_id": variant}
	}

	body, err := json.Marshal(map[string]any{
		"meta": map[string]any{
			"event_name": event,
			"test_mode":  true,
		},
		"data": map[string]any{
			"type":       "orders",
			"id":         "1",
			"attributes": attrs,
		},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return body
}

// Sign returns the hex HMAC-SHA256 of body, as carried in X-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type GrantOption func(*domain.Grant)

func WithGrantStatus(status domain.GrantStatus, reason string) GrantOption {
	return func(g *domain.Grant) {
		g.Status = status
		if reason != "" {
			g.FailureReason = &reason
		} else {
			g.FailureReason = nil
		}
	}
}

func WithCreatedAt(at time.Time) GrantOption {
	return func(g *domain.Grant) { g.CreatedAt = at }
}

func NewGrant(deliveryKey, email string, opts ...GrantOption) *domain.Grant {
	teamID := int64(4242)
	g := &domain.Grant{
		ID:           uuid.New(),
		DeliveryKey:  deliveryKey,
		EventName:    domain.EventOrderCreated,
		Email:        email,
		VariantID:    1083631,
		TeamSlug:     "customers-scale-boilerplate",
		TeamID:       &teamID,
		Status:       domain.GrantStatusSucceeded,
		ResourceType: "orders",
		ResourceID:   "1",
		TestMode:     true,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func SeedGrant(t *testing.T, db *sql.DB, g *domain.Grant) *domain.Grant {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO grant_ledger (id, delivery_key, event_name, email, variant_id, team_slug, team_id,
			status, failure_reason, resource_type, resource_id, test_mode, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		g.ID, g.DeliveryKey, g.EventName, g.Email, g.VariantID, g.TeamSlug, g.TeamID,
		g.Status, g.FailureReason, g.ResourceType, g.ResourceID, g.TestMode, g.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	return g
}
