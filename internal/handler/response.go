package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/buildin7days/entitlements/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type webhookAck struct {
	OK bool `json:"ok"`
}

type webhookError struct {
	Error string `json:"error"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

func RespondDomainError(w http.ResponseWriter, err error) {
	var appErr *AppError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, nil)
}

// RespondWebhookAck answers a delivery with 200 {"ok":true}.
func RespondWebhookAck(w http.ResponseWriter) {
	RespondJSON(w, http.StatusOK, webhookAck{OK: true})
}

func RespondWebhookError(w http.ResponseWriter, appErr *AppError) {
	RespondJSON(w, appErr.Status, webhookError{Error: appErr.Message})
}

// webhookErrorFor maps verification failures to their delivery response.
func webhookErrorFor(err error) *AppError {
	switch {
	case errors.Is(err, domain.ErrSecretNotConfigured):
		return ErrWebhookSecretNotConfigured
	case errors.Is(err, domain.ErrMissingSignature):
		return ErrWebhookMissingSignature
	case errors.Is(err, domain.ErrInvalidSignature):
		return ErrWebhookInvalidSignature
	default:
		return ErrWebhookProcessingFailed
	}
}
