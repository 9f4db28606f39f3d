package lemonsqueezy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildin7days/entitlements/internal/domain"
)

const testWebhookSecret = "test-secret-key"

func TestSign(t *testing.T) {
	body := []byte(`{"meta":{"event_name":"order_created"}}`)

	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	got := Sign(testWebhookSecret, body)
	assert.Equal(t, want, got)
	assert.Equal(t, strings.ToLower(got), got)
}

func TestVerify(t *testing.T) {
	body := []byte(`{"meta":{"event_name":"order_created"}}`)

	tests := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		wantErr   error
	}{
		{
			name:      "valid signature",
			secret:    testWebhookSecret,
			body:      body,
			signature: Sign(testWebhookSecret, body),
		},
		{
			name:      "secret not configured",
			secret:    "",
			body:      body,
			signature: Sign(testWebhookSecret, body),
			wantErr:   domain.ErrSecretNotConfigured,
		},
		{
			name:      "secret checked before signature",
			secret:    "",
			body:      body,
			signature: "",
			wantErr:   domain.ErrSecretNotConfigured,
		},
		{
			name:      "missing signature",
			secret:    testWebhookSecret,
			body:      body,
			signature: "",
			wantErr:   domain.ErrMissingSignature,
		},
		{
			name:      "wrong signature",
			secret:    testWebhookSecret,
			body:      body,
			signature: "deadbeef",
			wantErr:   domain.ErrInvalidSignature,
		},
		{
			name:      "wrong secret",
			secret:    testWebhookSecret,
			body:      body,
			signature: Sign("other-secret", body),
			wantErr:   domain.ErrInvalidSignature,
		},
		{
			name:      "uppercase hex is not accepted",
			secret:    testWebhookSecret,
			body:      body,
			signature: strings.ToUpper(Sign(testWebhookSecret, body)),
			wantErr:   domain.ErrInvalidSignature,
		},
		{
			name:      "re-serialized body does not verify",
			secret:    testWebhookSecret,
			body:      []byte(`{"meta": {"event_name": "order_created"}}`),
			signature: Sign(testWebhookSecret, body),
			wantErr:   domain.ErrInvalidSignature,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Verify(tc.secret, tc.body, tc.signature)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestVerify_ErrorClasses(t *testing.T) {
	assert.ErrorIs(t, Verify("", nil, "x"), domain.ErrConfiguration)
	assert.ErrorIs(t, Verify("s", nil, ""), domain.ErrAuthentication)
	assert.ErrorIs(t, Verify("s", nil, "x"), domain.ErrAuthentication)
}

func TestVerify_SingleBitMutation(t *testing.T) {
	body := []byte(`{"meta":{"event_name":"order_created"},"data":{"attributes":{"user_email":"a@example.com"}}}`)
	sig := Sign(testWebhookSecret, body)
	require.NoError(t, Verify(testWebhookSecret, body, sig))

	for i := range body {
		for bit := range 8 {
			mutated := append([]byte(nil), body...)
			mutated[i] ^= 1 << bit
			if err := Verify(testWebhookSecret, mutated, sig); err == nil {
				t.Fatalf("body mutation at byte %d bit %d still verified", i, bit)
			}
		}
	}

	for i := range len(sig) {
		for bit := range 8 {
			mutated := []byte(sig)
			mutated[i] ^= 1 << bit
			if err := Verify(testWebhookSecret, body, string(mutated)); err == nil {
				t.Fatalf("digest mutation at byte %d bit %d still verified", i, bit)
			}
		}
	}
}
