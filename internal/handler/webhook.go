package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/buildin7days/entitlements/internal/domain"
	"github.com/buildin7days/entitlements/internal/lemonsqueezy"
	"github.com/buildin7days/entitlements/internal/logging"
	"github.com/buildin7days/entitlements/internal/metrics"
	"github.com/buildin7days/entitlements/internal/service"
)

const maxWebhookBody = 1 << 20

type grantProcessor interface {
	Process(ctx context.Context, event *domain.WebhookEvent) (service.Outcome, error)
}

type WebhookHandler struct {
	grants           grantProcessor
	secret           string
	ackGrantFailures bool
	metrics          metrics.Recorder
}

// NewWebhookHandler builds the Lemon Squeezy receiver. An empty secret is
// accepted: every delivery is then refused with a configuration error.
func NewWebhookHandler(grants grantProcessor, secret string, ackGrantFailures bool, m metrics.Recorder) *WebhookHandler {
	if m == nil {
		m = metrics.Noop{}
	}
	return &WebhookHandler{
		grants:           grants,
		secret:           secret,
		ackGrantFailures: ackGrantFailures,
		metrics:          m,
	}
}

// ReceiveLemonWebhook verifies, classifies and acts on one delivery, writing
// exactly one response.
func (h *WebhookHandler) ReceiveLemonWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logging.FromContext(r.Context())

	event := "unknown"
	outcome := "failed"
	responded := false
	respond := func(appErr *AppError) {
		responded = true
		if appErr == nil {
			RespondWebhookAck(w)
			return
		}
		RespondWebhookError(w, appErr)
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic while processing webhook", "error", rec, "stack", string(debug.Stack()))
			outcome = "failed"
			if !responded {
				respond(ErrWebhookProcessingFailed)
			}
		}
		h.metrics.RecordWebhook(event, outcome)
		h.metrics.RecordWebhookDuration(event, time.Since(start))
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Error("webhook body exceeds limit", "limit_bytes", tooLarge.Limit)
		} else {
			log.Error("failed to read webhook body", "error", err)
		}
		respond(ErrWebhookProcessingFailed)
		return
	}

	if err := lemonsqueezy.Verify(h.secret, body, r.Header.Get(lemonsqueezy.SignatureHeader)); err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			log.Error("webhook secret not configured")
		} else {
			log.Warn("webhook signature rejected", "reason", err)
		}
		outcome = "rejected"
		respond(webhookErrorFor(err))
		return
	}

	ev, err := lemonsqueezy.Classify(body)
	if err != nil {
		log.Warn("unparseable webhook payload, acknowledging", "error", err)
		outcome = "skipped"
		respond(nil)
		return
	}
	event = string(ev.Name)

	// A started grant runs to completion even if the sender hangs up; the
	// directory timeout still bounds each call.
	result, err := h.grants.Process(context.WithoutCancel(r.Context()), ev)
	if err != nil {
		if h.ackGrantFailures {
			log.Warn("grant failed, acknowledging anyway", "error", err)
			respond(nil)
			return
		}
		respond(ErrWebhookProcessingFailed)
		return
	}

	if result.Granted() {
		outcome = "granted"
	} else {
		outcome = "skipped"
	}
	respond(nil)
}
