// Package directory grants access by inviting purchasers into teams of a
// GitHub organization.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/buildin7days/entitlements/internal/domain"
	"github.com/buildin7days/entitlements/internal/logging"
	"github.com/buildin7days/entitlements/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.github.com"

	apiVersion       = "2022-11-28"
	roleDirectMember = "direct_member"
	maxResponseBody  = 1 << 20
	maxErrorBody     = 4 << 10

	opLookup = "lookup"
	opInvite = "invite"
)

type Config struct {
	BaseURL string
	Token   string
	Org     string

	// Timeout bounds each outbound call, including reading the response.
	Timeout time.Duration

	// RatePerSecond and Burst pace outbound calls. Zero disables pacing.
	RatePerSecond float64
	Burst         int

	// BreakerFailures consecutive transport or 5xx failures open a step's
	// breaker for BreakerOpenTimeout.
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
}

type Client struct {
	baseURL    string
	token      string
	org        string
	httpClient *http.Client
	limiter    *rate.Limiter
	teams      TeamCache
	metrics    metrics.Recorder

	lookupBreaker *gobreaker.CircuitBreaker[int64]
	inviteBreaker *gobreaker.CircuitBreaker[struct{}]
}

type Option func(*Client)

// WithTeamCache caches slug -> team id resolutions across deliveries.
func WithTeamCache(cache TeamCache) Option {
	return func(c *Client) { c.teams = cache }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient replaces the default client. The replacement's own timeout
// applies instead of Config.Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(cfg Config, opts ...Option) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: baseURL,
		token:   cfg.Token,
		org:     cfg.Org,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics.Noop{},
	}
	if cfg.RatePerSecond > 0 {
		burst := max(cfg.Burst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	for _, opt := range opts {
		opt(c)
	}

	c.lookupBreaker = gobreaker.NewCircuitBreaker[int64](c.breakerSettings("directory-lookup", cfg))
	c.inviteBreaker = gobreaker.NewCircuitBreaker[struct{}](c.breakerSettings("directory-invite", cfg))
	return c
}

func (c *Client) breakerSettings(name string, cfg Config) gobreaker.Settings {
	threshold := cfg.BreakerFailures
	if threshold == 0 {
		threshold = 5
	}
	openFor := cfg.BreakerOpenTimeout
	if openFor <= 0 {
		openFor = 30 * time.Second
	}

	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			c.metrics.RecordBreakerState(name, to.String())
		},
	}
}

// Grant resolves slug and invites email into that team. The invitation is
// only sent once the lookup has succeeded; a failed invitation needs no
// compensation because the lookup has no side effect. When a cached team id
// is refused as unknown, the entry is dropped and the grant is retried once
// against a fresh lookup.
func (c *Client) Grant(ctx context.Context, slug, email string) (int64, error) {
	teamID, cached, err := c.resolveTeam(ctx, slug)
	if err != nil {
		return 0, fmt.Errorf("Grant: %w", err)
	}
	err = c.Invite(ctx, email, teamID)
	if err != nil && cached && staleTeam(err) {
		logging.FromContext(ctx).Warn("cached team id refused, resolving again",
			"team_slug", slug,
			"team_id", teamID,
			"error", err,
		)
		c.teams.Delete(ctx, slug)
		if teamID, _, err = c.resolveTeam(ctx, slug); err != nil {
			return 0, fmt.Errorf("Grant: %w", err)
		}
		err = c.Invite(ctx, email, teamID)
	}
	if err != nil {
		return teamID, fmt.Errorf("Grant: %w", err)
	}
	return teamID, nil
}

// staleTeam reports whether an invitation failure could mean the team id no
// longer exists upstream.
func staleTeam(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusUnprocessableEntity
}

type teamResponse struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// ResolveTeam returns the numeric id of the org team named by slug. Every
// failure wraps domain.ErrUpstreamLookup.
func (c *Client) ResolveTeam(ctx context.Context, slug string) (int64, error) {
	id, _, err := c.resolveTeam(ctx, slug)
	return id, err
}

func (c *Client) resolveTeam(ctx context.Context, slug string) (int64, bool, error) {
	if c.teams != nil {
		if id, ok := c.teams.Get(ctx, slug); ok {
			return id, true, nil
		}
	}

	id, err := c.lookupBreaker.Execute(func() (int64, error) {
		return c.fetchTeamID(ctx, slug)
	})
	if err != nil {
		return 0, false, fmt.Errorf("ResolveTeam %s: %w: %w", slug, domain.ErrUpstreamLookup, err)
	}

	if c.teams != nil {
		c.teams.Set(ctx, slug, id)
	}
	return id, false, nil
}

func (c *Client) fetchTeamID(ctx context.Context, slug string) (int64, error) {
	endpoint := fmt.Sprintf("%s/orgs/%s/teams/%s", c.baseURL, url.PathEscape(c.org), url.PathEscape(slug))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	body, err := c.do(ctx, opLookup, req)
	if err != nil {
		return 0, err
	}

	var team teamResponse
	if err := json.Unmarshal(body, &team); err != nil {
		return 0, fmt.Errorf("decode team: %w", err)
	}
	if team.ID == 0 {
		return 0, fmt.Errorf("team %s has no id: %s", slug, string(body))
	}
	return team.ID, nil
}

type invitationRequest struct {
	Email   string  `json:"email"`
	Role    string  `json:"role"`
	TeamIDs []int64 `json:"team_ids"`
}

// Invite creates a pending org invitation for email with teamID attached.
// Upstream decides what a repeated invitation does. Every failure wraps
// domain.ErrUpstreamGrant.
func (c *Client) Invite(ctx context.Context, email string, teamID int64) error {
	_, err := c.inviteBreaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.sendInvitation(ctx, email, teamID)
	})
	if err != nil {
		return fmt.Errorf("Invite: %w: %w", domain.ErrUpstreamGrant, err)
	}
	return nil
}

func (c *Client) sendInvitation(ctx context.Context, email string, teamID int64) error {
	payload, err := json.Marshal(invitationRequest{
		Email:   email,
		Role:    roleDirectMember,
		TeamIDs: []int64{teamID},
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	endpoint := fmt.Sprintf("%s/orgs/%s/invitations", c.baseURL, url.PathEscape(c.org))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(ctx, opInvite, req)
	return err
}

func (c *Client) do(ctx context.Context, op string, req *http.Request) ([]byte, error) {
	log := logging.FromContext(ctx)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	c.metrics.RecordDirectoryCallDuration(op, elapsed)
	if err != nil {
		c.metrics.RecordDirectoryCall(op, "error")
		return nil, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	c.metrics.RecordDirectoryCall(op, strconv.Itoa(resp.StatusCode))
	log.Info("directory response received",
		"op", op,
		"status", resp.StatusCode,
		"duration_ms", elapsed.Milliseconds(),
	)

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if readErr != nil {
		return nil, fmt.Errorf("read body: %w", readErr)
	}
	return body, nil
}

// StatusError reports a non-2xx directory response together with its body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// countsAsHealthy keeps client errors and caller cancellations from tripping
// a breaker; only transport failures and 5xx responses count.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode < 500
	}
	return false
}
