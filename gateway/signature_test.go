package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment.captured"}`)
	secret := "whsec_test"

	assert.True(t, VerifyWebhookSignature(payload, sign(payload, secret), secret))

	assert.False(t, VerifyWebhookSignature(payload, sign(payload, "wrong"), secret), "wrong secret")
	assert.False(t, VerifyWebhookSignature([]byte("tampered"), sign(payload, secret), secret), "tampered body")
	assert.False(t, VerifyWebhookSignature(payload, "", secret), "empty signature")
	assert.False(t, VerifyWebhookSignature(payload, sign(payload, secret), ""), "empty secret")
}
