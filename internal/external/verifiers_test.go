package external

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

// signHex computes the lowercase-hex HMAC-SHA256 Razorpay uses for callback
// and webhook signatures.
func signHex(t *testing.T, secret string, msg []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

// ---------------------------------------------------------------------------
// RazorpayVerifier Tests
// ---------------------------------------------------------------------------

func TestVerifySubscription_ValidSignature(t *testing.T) {
	v := NewRazorpayVerifier(types.SecretString("whsec"))

	sig := signHex(t, "whsec", []byte("pay_42|sub_42"))
	require.Equal(t, "6a896cf39a7c7f5314dede38a4f2209bb169a01aad9118c7571a64ccd2a0e90d", sig)

	assert.NoError(t, v.VerifySubscription("pay_42", "sub_42", sig))
}

func TestVerifySubscription_WrongSecret(t *testing.T) {
	v := NewRazorpayVerifier(types.SecretString("whsec"))

	sig := signHex(t, "not-the-secret", []byte("pay_42|sub_42"))
	assert.Error(t, v.VerifySubscription("pay_42", "sub_42", sig))
}

func TestVerifySubscription_SwappedFields(t *testing.T) {
	v := NewRazorpayVerifier(types.SecretString("whsec"))

	// Signature over the reversed message order must not verify.
	sig := signHex(t, "whsec", []byte("sub_42|pay_42"))
	assert.Error(t, v.VerifySubscription("pay_42", "sub_42", sig))
}

func TestVerifySubscription_MissingFields(t *testing.T) {
	v := NewRazorpayVerifier(types.SecretString("whsec"))
	sig := signHex(t, "whsec", []byte("pay_42|sub_42"))

	assert.Error(t, v.VerifySubscription("", "sub_42", sig))
	assert.Error(t, v.VerifySubscription("pay_42", "", sig))
	assert.Error(t, v.VerifySubscription("pay_42", "sub_42", ""))
}

func TestVerifyOrder_ValidSignature(t *testing.T) {
	v := NewRazorpayVerifier(types.SecretString("s3cr3t"))

	sig := signHex(t, "s3cr3t", []byte("order_1|pay_1"))
	require.Equal(t, "c4ba7785e595b717abd8b4847eaf30e97f23acbdbe1b8f5cbbf17d28d63b068f", sig)

	assert.NoError(t, v.VerifyOrder("order_1", "pay_1", sig))
}

func TestVerifyOrder_TamperedSignature(t *testing.T) {
	v := NewRazorpayVerifier(types.SecretString("s3cr3t"))

	sig := signHex(t, "s3cr3t", []byte("order_1|pay_1"))
	tampered := "0" + sig[1:]
	if tampered == sig {
		tampered = "1" + sig[1:]
	}
	assert.Error(t, v.VerifyOrder("order_1", "pay_1", tampered))
}

// ---------------------------------------------------------------------------
// WebhookVerifier Tests
// ---------------------------------------------------------------------------

func TestWebhookVerify_ValidSignature(t *testing.T) {
	v := NewWebhookVerifier(types.SecretString("topsecret"))

	body := []byte(`{"event":"x"}`)
	sig := signHex(t, "topsecret", body)
	require.Equal(t, "d3e1605d47ef7dcb51a1c506488393f329514f22326e7493a6cb12f377f289ab", sig)

	assert.NoError(t, v.Verify(body, sig))
}

func TestWebhookVerify_BodyMustNotBeReformatted(t *testing.T) {
	v := NewWebhookVerifier(types.SecretString("topsecret"))

	body := []byte(`{"event":"x"}`)
	sig := signHex(t, "topsecret", body)

	// Semantically identical JSON with different whitespace is a different
	// byte sequence and must fail.
	assert.Error(t, v.Verify([]byte(`{ "event": "x" }`), sig))
}

func TestWebhookVerify_MissingSignature(t *testing.T) {
	v := NewWebhookVerifier(types.SecretString("topsecret"))
	assert.Error(t, v.Verify([]byte(`{}`), ""))
}

func TestWebhookVerify_DistinctFromKeySecret(t *testing.T) {
	// Callback signatures use the API key secret, webhooks use the webhook
	// secret. A signature minted with the wrong one must not cross over.
	v := NewWebhookVerifier(types.SecretString("topsecret"))

	body := []byte(`{"event":"x"}`)
	sig := signHex(t, "rzp_key_secret", body)
	assert.Error(t, v.Verify(body, sig))
}
