package lemonsqueezy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/buildin7days/entitlements/internal/domain"
)

const (
	pathEventName        = "meta.event_name"
	pathTestMode         = "meta.test_mode"
	pathResourceType     = "data.type"
	pathResourceID       = "data.id"
	pathUserEmail        = "data.attributes.user_email"
	pathFirstItemVariant = "data.attributes.first_order_item.variant_id"
	pathOrderItemVariant = "data.attributes.order_items.data.0.attributes.variant_id"
)

// Classify normalizes a verified webhook body. Only an unparseable body is an
// error; missing or mistyped fields come back as absent values.
func Classify(body []byte) (*domain.WebhookEvent, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("Classify: %w", domain.ErrMalformedPayload)
	}

	fields := gjson.GetManyBytes(body,
		pathEventName,
		pathTestMode,
		pathResourceType,
		pathResourceID,
		pathUserEmail,
	)

	rawName := stringField(fields[0])
	event := &domain.WebhookEvent{
		Name:           domain.ParseEventName(rawName),
		RawName:        rawName,
		TestMode:       fields[1].Type == gjson.True,
		ResourceType:   stringField(fields[2]),
		ResourceID:     idField(fields[3]),
		PurchaserEmail: strings.TrimSpace(stringField(fields[4])),
		VariantID:      extractVariantID(body),
		DeliveryKey:    DeliveryKey(body),
	}
	return event, nil
}

// extractVariantID prefers first_order_item (order events) over the first
// order_items entry (subscription events).
func extractVariantID(body []byte) int64 {
	if id := variantField(gjson.GetBytes(body, pathFirstItemVariant)); id != 0 {
		return id
	}
	return variantField(gjson.GetBytes(body, pathOrderItemVariant))
}

// DeliveryKey identifies a delivery by the digest of its raw body. Provider
// re-deliveries resend identical bytes.
func DeliveryKey(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func stringField(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}

func idField(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return r.Raw
	default:
		return ""
	}
}

func variantField(r gjson.Result) int64 {
	if r.Type != gjson.Number {
		return 0
	}
	return r.Int()
}
