package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration  = errors.New("configuration error")
	ErrAuthentication = errors.New("authentication failed")

	ErrSecretNotConfigured = fmt.Errorf("%w: webhook secret not configured", ErrConfiguration)
	ErrMissingSignature    = fmt.Errorf("%w: missing signature", ErrAuthentication)
	ErrInvalidSignature    = fmt.Errorf("%w: invalid signature", ErrAuthentication)

	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrUpstreamLookup   = errors.New("directory team lookup failed")
	ErrUpstreamGrant    = errors.New("directory invitation failed")
	ErrDuplicateGrant   = errors.New("delivery already granted")
	ErrNotFound         = errors.New("not found")
)
