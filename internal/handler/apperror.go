package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrRateLimited      = &AppError{http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}
)

// Webhook deliveries are answered with a bare {"error": ...} body rather than
// the APIResponse envelope; the sender only looks at the status code.
var (
	ErrWebhookSecretNotConfigured = &AppError{http.StatusInternalServerError, "WEBHOOK_SECRET_NOT_CONFIGURED", "Webhook secret not configured"}
	ErrWebhookMissingSignature    = &AppError{http.StatusUnauthorized, "MISSING_SIGNATURE", "Missing signature"}
	ErrWebhookInvalidSignature    = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Invalid signature"}
	ErrWebhookProcessingFailed    = &AppError{http.StatusInternalServerError, "WEBHOOK_PROCESSING_FAILED", "Webhook processing failed"}
)
