package domain

import (
	"time"

	"github.com/google/uuid"
)

type GrantStatus string

const (
	GrantStatusSucceeded GrantStatus = "succeeded"
	GrantStatusFailed    GrantStatus = "failed"
)

// Grant is one ledger row: an attempt to invite Email into TeamSlug on behalf
// of a single webhook delivery.
type Grant struct {
	ID            uuid.UUID
	DeliveryKey   string
	EventName     EventName
	Email         string
	VariantID     int64
	TeamSlug      string
	TeamID        *int64
	Status        GrantStatus
	FailureReason *string
	ResourceType  string
	ResourceID    string
	TestMode      bool
	CreatedAt     time.Time
}
