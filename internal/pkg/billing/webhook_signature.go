package billing

import (
	"context"
	"net/http"
	"strings"
)

// SignatureVerifier decides whether a webhook delivery is authentic. The
// reconciler only ever sees deliveries it accepted.
type SignatureVerifier interface {
	VerifyWebhook(ctx context.Context, headers http.Header, rawBody []byte) (bool, error)
}

// SignatureVerifierFunc adapts a function to SignatureVerifier.
type SignatureVerifierFunc func(ctx context.Context, headers http.Header, rawBody []byte) (bool, error)

func (f SignatureVerifierFunc) VerifyWebhook(ctx context.Context, headers http.Header, rawBody []byte) (bool, error) {
	return f(ctx, headers, rawBody)
}

// WebhookSignatureFromHeaders extracts the PayPal transmission headers.
func WebhookSignatureFromHeaders(h http.Header) WebhookSignature {
	return WebhookSignature{
		AuthAlgo:         strings.TrimSpace(h.Get("Paypal-Auth-Algo")),
		CertURL:          strings.TrimSpace(h.Get("Paypal-Cert-Url")),
		TransmissionID:   strings.TrimSpace(h.Get("Paypal-Transmission-Id")),
		TransmissionSig:  strings.TrimSpace(h.Get("Paypal-Transmission-Sig")),
		TransmissionTime: strings.TrimSpace(h.Get("Paypal-Transmission-Time")),
	}
}

// VerifyWebhook makes PayPalClient a SignatureVerifier.
func (c *PayPalClient) VerifyWebhook(ctx context.Context, headers http.Header, rawBody []byte) (bool, error) {
	return c.VerifyWebhookSignature(ctx, WebhookSignatureFromHeaders(headers), rawBody)
}
