package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/buildin7days/entitlements/internal/domain"
	"github.com/buildin7days/entitlements/internal/logging"
)

type SkipReason string

const (
	SkipNone              SkipReason = ""
	SkipUnrecognizedEvent SkipReason = "unrecognized_event"
	SkipRevokeUnsupported SkipReason = "revoke_unsupported"
	SkipMissingEmail      SkipReason = "missing_email"
	SkipMissingVariant    SkipReason = "missing_variant"
	SkipUnmappedVariant   SkipReason = "unmapped_variant"
	SkipAlreadyGranted    SkipReason = "already_granted"
)

// Decision is what a delivery asks for. TeamSlug is set only for ActionGrant;
// Reason is set for everything else.
type Decision struct {
	Action   domain.EventAction
	TeamSlug string
	Reason   SkipReason
}

type Outcome struct {
	Decision Decision
	TeamID   int64
}

func (o Outcome) Granted() bool { return o.Decision.Action == domain.ActionGrant && o.TeamID != 0 }

type teamLookup interface {
	TeamFor(variantID int64) (string, bool)
}

type granter interface {
	Grant(ctx context.Context, slug, email string) (int64, error)
}

type grantLedger interface {
	Create(ctx context.Context, g *domain.Grant) error
	HasSucceeded(ctx context.Context, deliveryKey string) (bool, error)
	ListByEmail(ctx context.Context, email string, limit int) ([]domain.Grant, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Grant, error)
}

// NoopLedger keeps no record. Used when no database is configured.
type NoopLedger struct{}

func (NoopLedger) Create(context.Context, *domain.Grant) error        { return nil }
func (NoopLedger) HasSucceeded(context.Context, string) (bool, error) { return false, nil }

func (NoopLedger) ListRecent(context.Context, int) ([]domain.Grant, error) {
	return []domain.Grant{}, nil
}

func (NoopLedger) ListByEmail(context.Context, string, int) ([]domain.Grant, error) {
	return []domain.Grant{}, nil
}

type GrantService struct {
	teams   teamLookup
	granter granter
	ledger  grantLedger
	dedupe  bool
}

func NewGrantService(teams teamLookup, g granter, ledger grantLedger, dedupe bool) *GrantService {
	if ledger == nil {
		ledger = NoopLedger{}
	}
	return &GrantService{teams: teams, granter: g, ledger: ledger, dedupe: dedupe}
}

// Decide is total over every event: it never fails and never performs I/O.
func (s *GrantService) Decide(event *domain.WebhookEvent) Decision {
	switch event.Name.Action() {
	case domain.ActionRevoke:
		return Decision{Action: domain.ActionRevoke, Reason: SkipRevokeUnsupported}
	case domain.ActionGrant:
	default:
		return Decision{Action: domain.ActionSkip, Reason: SkipUnrecognizedEvent}
	}

	if event.PurchaserEmail == "" {
		return Decision{Action: domain.ActionSkip, Reason: SkipMissingEmail}
	}
	if !event.HasVariant() {
		return Decision{Action: domain.ActionSkip, Reason: SkipMissingVariant}
	}
	slug, ok := s.teams.TeamFor(event.VariantID)
	if !ok {
		return Decision{Action: domain.ActionSkip, Reason: SkipUnmappedVariant}
	}
	return Decision{Action: domain.ActionGrant, TeamSlug: slug}
}

// Process decides and, for grant decisions, invites the purchaser. A non-nil
// error always wraps domain.ErrUpstreamLookup or domain.ErrUpstreamGrant.
func (s *GrantService) Process(ctx context.Context, event *domain.WebhookEvent) (Outcome, error) {
	log := logging.FromContext(ctx).With(
		"event_name", event.RawName,
		"delivery_key", event.DeliveryKey,
	)

	decision := s.Decide(event)
	if decision.Action != domain.ActionGrant {
		log.Info("delivery skipped",
			"action", decision.Action,
			"reason", decision.Reason,
			"variant_id", event.VariantID,
		)
		return Outcome{Decision: decision}, nil
	}

	if s.dedupe && event.DeliveryKey != "" {
		done, err := s.ledger.HasSucceeded(ctx, event.DeliveryKey)
		switch {
		case err != nil:
			log.Warn("ledger lookup failed, granting anyway", "error", err)
		case done:
			log.Info("delivery already granted", "team_slug", decision.TeamSlug)
			return Outcome{Decision: Decision{Action: domain.ActionSkip, Reason: SkipAlreadyGranted}}, nil
		}
	}

	teamID, grantErr := s.granter.Grant(ctx, decision.TeamSlug, event.PurchaserEmail)
	s.record(ctx, event, decision.TeamSlug, teamID, grantErr)

	if grantErr != nil {
		log.Error("grant failed",
			"team_slug", decision.TeamSlug,
			"variant_id", event.VariantID,
			"error", grantErr,
		)
		return Outcome{Decision: decision}, fmt.Errorf("Process: %w", grantErr)
	}

	log.Info("access granted",
		"email", event.PurchaserEmail,
		"team_slug", decision.TeamSlug,
		"team_id", teamID,
	)
	return Outcome{Decision: decision, TeamID: teamID}, nil
}

func (s *GrantService) record(ctx context.Context, event *domain.WebhookEvent, slug string, teamID int64, grantErr error) {
	g := &domain.Grant{
		ID:           uuid.New(),
		DeliveryKey:  event.DeliveryKey,
		EventName:    event.Name,
		Email:        event.PurchaserEmail,
		VariantID:    event.VariantID,
		TeamSlug:     slug,
		Status:       domain.GrantStatusSucceeded,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		TestMode:     event.TestMode,
		CreatedAt:    time.Now().UTC(),
	}
	if teamID != 0 {
		g.TeamID = &teamID
	}
	if grantErr != nil {
		reason := failureReason(grantErr)
		g.Status = domain.GrantStatusFailed
		g.FailureReason = &reason
	}

	err := s.ledger.Create(ctx, g)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDuplicateGrant) && s.dedupe:
		logging.FromContext(ctx).Warn("delivery granted concurrently", "delivery_key", event.DeliveryKey)
	case errors.Is(err, domain.ErrDuplicateGrant):
		// Without the pre-grant check every redelivery lands here.
		logging.FromContext(ctx).Info("duplicate successful delivery recorded", "delivery_key", event.DeliveryKey)
	default:
		logging.FromContext(ctx).Error("failed to record grant", "delivery_key", event.DeliveryKey, "error", err)
	}
}

// failureReason keeps upstream response bodies out of the ledger.
func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUpstreamLookup):
		return domain.ErrUpstreamLookup.Error()
	case errors.Is(err, domain.ErrUpstreamGrant):
		return domain.ErrUpstreamGrant.Error()
	default:
		return "grant failed"
	}
}

// ListGrants returns ledger rows newest first, filtered by email when given.
func (s *GrantService) ListGrants(ctx context.Context, email string, limit int) ([]domain.Grant, error) {
	var (
		grants []domain.Grant
		err    error
	)
	if email != "" {
		grants, err = s.ledger.ListByEmail(ctx, email, limit)
	} else {
		grants, err = s.ledger.ListRecent(ctx, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("ListGrants: %w", err)
	}
	return grants, nil
}
