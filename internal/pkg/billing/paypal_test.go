package billing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPayPalStub serves the token endpoint plus the given API handlers.
func newPayPalStub(t *testing.T, api map[string]http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"A21AA","token_type":"Bearer","expires_in":32400}`))
	})
	for path, h := range api {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenCalls
}

func newStubClient(baseURL string) *PayPalClient {
	return NewPayPalClient(PayPalConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		APIBaseURL:   baseURL,
		WebhookID:    "WH-CONFIG-1",
		ReturnURL:    "https://app.test/payments/return",
		CancelURL:    "https://app.test/payments/cancel",
	})
}

func TestPayPalClient_CreateOrder(t *testing.T) {
	var got map[string]interface{}
	var requestID string
	srv, tokenCalls := newPayPalStub(t, map[string]http.HandlerFunc{
		"/v2/checkout/orders": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer A21AA", r.Header.Get("Authorization"))
			requestID = r.Header.Get("PayPal-Request-Id")
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &got)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"5O190127TN364715T","status":"CREATED","links":[
				{"href":"https://api.test/v2/checkout/orders/5O190127TN364715T","rel":"self"},
				{"href":"https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T","rel":"approve"}]}`))
		},
	})
	client := newStubClient(srv.URL)

	order, err := client.CreateOrder(context.Background(), decimal.RequireFromString("50"), "MensajeroPRO pro plan")
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", order.ID)
	assert.Equal(t, "CREATED", order.Status)
	assert.Equal(t, "https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T", order.ApprovalLink)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, int32(1), atomic.LoadInt32(tokenCalls))

	assert.Equal(t, "CAPTURE", got["intent"])
	units := got["purchase_units"].([]interface{})
	amount := units[0].(map[string]interface{})["amount"].(map[string]interface{})
	assert.Equal(t, "USD", amount["currency_code"])
	assert.Equal(t, "50.00", amount["value"])
	appCtx := got["application_context"].(map[string]interface{})
	assert.Equal(t, "https://app.test/payments/return", appCtx["return_url"])
}

func TestPayPalClient_CreateOrderErrors(t *testing.T) {
	srv, _ := newPayPalStub(t, map[string]http.HandlerFunc{
		"/v2/checkout/orders": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY"}`))
		},
	})

	_, err := newStubClient(srv.URL).CreateOrder(context.Background(), decimal.RequireFromString("10"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=422")

	_, err = newStubClient(srv.URL).CreateOrder(context.Background(), decimal.Zero, "")
	assert.Error(t, err)

	_, err = NewPayPalClient(PayPalConfig{APIBaseURL: srv.URL}).CreateOrder(context.Background(), decimal.RequireFromString("10"), "")
	assert.Error(t, err)
}

func signedHeaders() http.Header {
	h := http.Header{}
	h.Set("PAYPAL-AUTH-ALGO", "SHA256withRSA")
	h.Set("PAYPAL-CERT-URL", "https://api.sandbox.paypal.com/v1/notifications/certs/CERT-360caa42-fca2a594-1d93a270")
	h.Set("PAYPAL-TRANSMISSION-ID", "103e3700-8b0c-11e6-8695-6b62a8a99ac4")
	h.Set("PAYPAL-TRANSMISSION-SIG", "t8hlRk64rpEImZMKqgtp5dlWaT1W8ed")
	h.Set("PAYPAL-TRANSMISSION-TIME", "2016-10-05T14:57:40Z")
	return h
}

func TestPayPalClient_VerifyWebhook(t *testing.T) {
	verdict := "SUCCESS"
	var got map[string]json.RawMessage
	srv, _ := newPayPalStub(t, map[string]http.HandlerFunc{
		"/v1/notifications/verify-webhook-signature": func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &got)
			_, _ = w.Write([]byte(`{"verification_status":"` + verdict + `"}`))
		},
	})
	client := newStubClient(srv.URL)
	raw := []byte(`{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED"}`)

	ok, err := client.VerifyWebhook(context.Background(), signedHeaders(), raw)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `"WH-CONFIG-1"`, string(got["webhook_id"]))
	assert.JSONEq(t, string(raw), string(got["webhook_event"]))
	assert.JSONEq(t, `"SHA256withRSA"`, string(got["auth_algo"]))

	verdict = "FAILURE"
	ok, err = client.VerifyWebhook(context.Background(), signedHeaders(), raw)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPayPalClient_VerifyWebhookMissingHeaders(t *testing.T) {
	var calls int32
	srv, _ := newPayPalStub(t, map[string]http.HandlerFunc{
		"/v1/notifications/verify-webhook-signature": func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			_, _ = w.Write([]byte(`{"verification_status":"SUCCESS"}`))
		},
	})
	client := newStubClient(srv.URL)

	h := signedHeaders()
	h.Del("PAYPAL-TRANSMISSION-SIG")
	ok, err := client.VerifyWebhook(context.Background(), h, []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = client.VerifyWebhook(context.Background(), signedHeaders(), []byte(`{broken`))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestPayPalClient_VerifyWebhookUpstreamError(t *testing.T) {
	srv, _ := newPayPalStub(t, map[string]http.HandlerFunc{
		"/v1/notifications/verify-webhook-signature": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		},
	})

	_, err := newStubClient(srv.URL).VerifyWebhook(context.Background(), signedHeaders(), []byte(`{}`))
	assert.Error(t, err)

	noWebhook := NewPayPalClient(PayPalConfig{ClientID: "client-id", ClientSecret: "client-secret", APIBaseURL: srv.URL})
	_, err = noWebhook.VerifyWebhook(context.Background(), signedHeaders(), []byte(`{}`))
	assert.Error(t, err)
}
