package external

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// ---------------------------------------------------------------------------
// Payment callback verification (HMAC-SHA256)
// ---------------------------------------------------------------------------

// RazorpayVerifier implements billing.PaymentVerifier. The provider signs
// client-relayed callbacks with HMAC-SHA256 over a pipe-joined message
// using the API key secret; signatures are lowercase hex.
type RazorpayVerifier struct {
	keySecret types.SecretString
}

// NewRazorpayVerifier creates a verifier over the provider key secret.
func NewRazorpayVerifier(keySecret types.SecretString) *RazorpayVerifier {
	return &RazorpayVerifier{keySecret: keySecret}
}

// VerifySubscription checks the signature over "paymentID|subscriptionID".
func (v *RazorpayVerifier) VerifySubscription(paymentID, subscriptionID, signature string) error {
	if paymentID == "" || subscriptionID == "" || signature == "" {
		return errors.New("payment id, subscription id and signature are all required")
	}
	msg := fmt.Sprintf("%s|%s", paymentID, subscriptionID)
	return verifyHMAC([]byte(msg), signature, v.keySecret.Unmask())
}

// VerifyOrder checks the signature over "orderID|paymentID".
func (v *RazorpayVerifier) VerifyOrder(orderID, paymentID, signature string) error {
	if orderID == "" || paymentID == "" || signature == "" {
		return errors.New("order id, payment id and signature are all required")
	}
	msg := fmt.Sprintf("%s|%s", orderID, paymentID)
	return verifyHMAC([]byte(msg), signature, v.keySecret.Unmask())
}

// ---------------------------------------------------------------------------
// Webhook verification (HMAC-SHA256 over the raw body)
// ---------------------------------------------------------------------------

// WebhookVerifier checks the X-Razorpay-Signature header against the raw
// request body using the dedicated webhook secret (distinct from the API
// key secret used for callbacks).
type WebhookVerifier struct {
	webhookSecret types.SecretString
}

// NewWebhookVerifier creates a verifier over the webhook secret.
func NewWebhookVerifier(webhookSecret types.SecretString) *WebhookVerifier {
	return &WebhookVerifier{webhookSecret: webhookSecret}
}

// Verify checks the signature over the exact raw body bytes. The body must
// not be re-serialized before verification; any reformatting changes the
// bytes and breaks the signature.
func (v *WebhookVerifier) Verify(rawBody []byte, signature string) error {
	if signature == "" {
		return errors.New("signature header is missing")
	}
	return verifyHMAC(rawBody, signature, v.webhookSecret.Unmask())
}

// verifyHMAC computes HMAC-SHA256 over msg with the secret and compares the
// lowercase-hex encoding against the provided signature in constant time.
func verifyHMAC(msg []byte, signature, secret string) error {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errors.New("signature does not match expected digest")
	}
	return nil
}
