package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mensajeropro/mensajero/internal/pkg/env"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultPayPalAPIBaseURL = "https://api-m.sandbox.paypal.com"
	payPalRequestTimeout    = 15 * time.Second
)

// Order is what the order-initiation path needs back from the provider.
type Order struct {
	ID           string
	Status       string
	ApprovalLink string
}

// OrderCreator opens a checkout order for amount (USD).
type OrderCreator interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, description string) (*Order, error)
}

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string
	WebhookID    string
	ReturnURL    string
	CancelURL    string
}

// PayPalClient talks to the PayPal REST API. Its HTTP client fetches and
// refreshes the client-credentials access token on its own.
type PayPalClient struct {
	cfg        PayPalConfig
	HTTPClient *http.Client
}

func NewPayPalClientFromEnv() *PayPalClient {
	return NewPayPalClient(PayPalConfig{
		ClientID:     strings.TrimSpace(env.GetEnv("PAYPAL_CLIENT_ID", "")),
		ClientSecret: strings.TrimSpace(env.GetEnv("PAYPAL_CLIENT_SECRET", "")),
		APIBaseURL:   strings.TrimSpace(env.GetEnv("PAYPAL_API_BASE_URL", defaultPayPalAPIBaseURL)),
		WebhookID:    strings.TrimSpace(env.GetEnv("PAYPAL_WEBHOOK_ID", "")),
		ReturnURL:    strings.TrimSpace(env.GetEnv("PAYPAL_RETURN_URL", "")),
		CancelURL:    strings.TrimSpace(env.GetEnv("PAYPAL_CANCEL_URL", "")),
	})
}

func NewPayPalClient(cfg PayPalConfig) *PayPalClient {
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultPayPalAPIBaseURL
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.APIBaseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	base := &http.Client{Timeout: payPalRequestTimeout}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := cc.Client(tokenCtx)
	httpClient.Timeout = payPalRequestTimeout

	return &PayPalClient{cfg: cfg, HTTPClient: httpClient}
}

func (c *PayPalClient) configured() error {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return errors.New("PAYPAL_CLIENT_ID/PAYPAL_CLIENT_SECRET are not configured")
	}
	return nil
}

// CreateOrder opens a CAPTURE-intent order and returns its approval link.
func (c *PayPalClient) CreateOrder(ctx context.Context, amount decimal.Decimal, description string) (*Order, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("order amount must be positive, got %s", amount.String())
	}

	type money struct {
		CurrencyCode string `json:"currency_code"`
		Value        string `json:"value"`
	}
	type purchaseUnit struct {
		Amount      money  `json:"amount"`
		Description string `json:"description,omitempty"`
	}
	type appContext struct {
		ReturnURL string `json:"return_url,omitempty"`
		CancelURL string `json:"cancel_url,omitempty"`
	}
	body := struct {
		Intent             string         `json:"intent"`
		PurchaseUnits      []purchaseUnit `json:"purchase_units"`
		ApplicationContext *appContext    `json:"application_context,omitempty"`
	}{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			Amount:      money{CurrencyCode: "USD", Value: amount.StringFixed(2)},
			Description: description,
		}},
	}
	if c.cfg.ReturnURL != "" || c.cfg.CancelURL != "" {
		body.ApplicationContext = &appContext{ReturnURL: c.cfg.ReturnURL, CancelURL: c.cfg.CancelURL}
	}

	headers := map[string]string{"PayPal-Request-Id": uuid.NewString()}
	respBody, err := c.postJSON(ctx, "/v2/checkout/orders", body, headers)
	if err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}

	var raw struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, errors.New("paypal create order returned empty id")
	}

	out := &Order{ID: strings.TrimSpace(raw.ID), Status: raw.Status}
	for _, l := range raw.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			out.ApprovalLink = l.Href
			break
		}
	}
	return out, nil
}

// WebhookSignature carries the PayPal transmission headers of a delivery.
type WebhookSignature struct {
	AuthAlgo         string
	CertURL          string
	TransmissionID   string
	TransmissionSig  string
	TransmissionTime string
}

func (s WebhookSignature) complete() bool {
	return s.AuthAlgo != "" && s.CertURL != "" && s.TransmissionID != "" && s.TransmissionSig != "" && s.TransmissionTime != ""
}

// VerifyWebhookSignature asks PayPal whether the delivery was signed for
// the configured webhook id.
func (c *PayPalClient) VerifyWebhookSignature(ctx context.Context, sig WebhookSignature, rawBody []byte) (bool, error) {
	if err := c.configured(); err != nil {
		return false, err
	}
	if c.cfg.WebhookID == "" {
		return false, errors.New("PAYPAL_WEBHOOK_ID is not configured")
	}
	if !sig.complete() || !json.Valid(rawBody) {
		return false, nil
	}

	body := struct {
		AuthAlgo         string          `json:"auth_algo"`
		CertURL          string          `json:"cert_url"`
		TransmissionID   string          `json:"transmission_id"`
		TransmissionSig  string          `json:"transmission_sig"`
		TransmissionTime string          `json:"transmission_time"`
		WebhookID        string          `json:"webhook_id"`
		WebhookEvent     json.RawMessage `json:"webhook_event"`
	}{
		AuthAlgo:         sig.AuthAlgo,
		CertURL:          sig.CertURL,
		TransmissionID:   sig.TransmissionID,
		TransmissionSig:  sig.TransmissionSig,
		TransmissionTime: sig.TransmissionTime,
		WebhookID:        c.cfg.WebhookID,
		WebhookEvent:     json.RawMessage(rawBody),
	}

	respBody, err := c.postJSON(ctx, "/v1/notifications/verify-webhook-signature", body, nil)
	if err != nil {
		return false, fmt.Errorf("paypal verify webhook signature: %w", err)
	}
	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return false, err
	}
	return strings.EqualFold(out.VerificationStatus, "SUCCESS"), nil
}

func (c *PayPalClient) postJSON(ctx context.Context, path string, payload interface{}, headers map[string]string) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}
	return body, nil
}
