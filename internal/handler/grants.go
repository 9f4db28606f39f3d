package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/buildin7days/entitlements/internal/domain"
	"github.com/buildin7days/entitlements/internal/logging"
)

type grantLister interface {
	ListGrants(ctx context.Context, email string, limit int) ([]domain.Grant, error)
}

type GrantsHandler struct {
	grants grantLister
}

func NewGrantsHandler(grants grantLister) *GrantsHandler {
	return &GrantsHandler{grants: grants}
}

type grantResponse struct {
	ID            string  `json:"id"`
	DeliveryKey   string  `json:"delivery_key"`
	EventName     string  `json:"event_name"`
	Email         string  `json:"email"`
	VariantID     int64   `json:"variant_id"`
	TeamSlug      string  `json:"team_slug"`
	TeamID        *int64  `json:"team_id"`
	Status        string  `json:"status"`
	FailureReason *string `json:"failure_reason"`
	ResourceType  string  `json:"resource_type,omitempty"`
	ResourceID    string  `json:"resource_id,omitempty"`
	TestMode      bool    `json:"test_mode"`
	CreatedAt     string  `json:"created_at"`
}

func toGrantResponse(g domain.Grant) grantResponse {
	return grantResponse{
		ID:            g.ID.String(),
		DeliveryKey:   g.DeliveryKey,
		EventName:     string(g.EventName),
		Email:         g.Email,
		VariantID:     g.VariantID,
		TeamSlug:      g.TeamSlug,
		TeamID:        g.TeamID,
		Status:        string(g.Status),
		FailureReason: g.FailureReason,
		ResourceType:  g.ResourceType,
		ResourceID:    g.ResourceID,
		TestMode:      g.TestMode,
		CreatedAt:     g.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *GrantsHandler) ListGrants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email := strings.TrimSpace(q.Get("email"))

	var fields []FieldError
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fields = append(fields, FieldError{Field: "limit", Message: "must be a positive integer"})
		}
		limit = n
	}
	if email != "" && !strings.Contains(email, "@") {
		fields = append(fields, FieldError{Field: "email", Message: "must be an email address"})
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	grants, err := h.grants.ListGrants(r.Context(), email, limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list grants", "error", err)
		RespondDomainError(w, err)
		return
	}

	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, toGrantResponse(g))
	}
	RespondSuccess(w, http.StatusOK, out)
}
