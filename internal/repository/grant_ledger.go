package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/buildin7days/entitlements/internal/domain"
)

const grantColumns = `id, delivery_key, event_name, email, variant_id, team_slug, team_id,
	status, failure_reason, resource_type, resource_id, test_mode, created_at`

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// GrantLedgerRepository is an append-only log of grant attempts. Rows are
// never updated; a retried delivery appends a new row. At most one
// succeeded row may exist per delivery key.
type GrantLedgerRepository struct {
	db *sql.DB
}

func NewGrantLedgerRepository(db *sql.DB) *GrantLedgerRepository {
	return &GrantLedgerRepository{db: db}
}

func (r *GrantLedgerRepository) Create(ctx context.Context, g *domain.Grant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO grant_ledger (`+grantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		g.ID, g.DeliveryKey, g.EventName, g.Email, g.VariantID, g.TeamSlug, g.TeamID,
		g.Status, g.FailureReason, g.ResourceType, g.ResourceID, g.TestMode, g.CreatedAt,
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("Create: %w", domain.ErrDuplicateGrant)
	}
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// HasSucceeded reports whether deliveryKey already produced a successful grant.
func (r *GrantLedgerRepository) HasSucceeded(ctx context.Context, deliveryKey string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM grant_ledger WHERE delivery_key = $1 AND status = $2
		)`,
		deliveryKey, domain.GrantStatusSucceeded,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("HasSucceeded: %w", err)
	}
	return exists, nil
}

func (r *GrantLedgerRepository) ListByEmail(ctx context.Context, email string, limit int) ([]domain.Grant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+grantColumns+` FROM grant_ledger
		WHERE lower(email) = lower($1) ORDER BY created_at DESC, id LIMIT $2`,
		email, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("ListByEmail: %w", err)
	}
	defer rows.Close()

	grants, err := scanGrants(rows)
	if err != nil {
		return nil, fmt.Errorf("ListByEmail: %w", err)
	}
	return grants, nil
}

func (r *GrantLedgerRepository) ListRecent(ctx context.Context, limit int) ([]domain.Grant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+grantColumns+` FROM grant_ledger
		ORDER BY created_at DESC, id LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer rows.Close()

	grants, err := scanGrants(rows)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	return grants, nil
}

func scanGrants(rows *sql.Rows) ([]domain.Grant, error) {
	grants := []domain.Grant{}
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		grants = append(grants, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return grants, nil
}

func scanGrant(s scanner) (*domain.Grant, error) {
	var g domain.Grant
	err := s.Scan(
		&g.ID, &g.DeliveryKey, &g.EventName, &g.Email, &g.VariantID, &g.TeamSlug, &g.TeamID,
		&g.Status, &g.FailureReason, &g.ResourceType, &g.ResourceID, &g.TestMode, &g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

func isDuplicateKey(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
