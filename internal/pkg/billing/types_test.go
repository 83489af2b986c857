package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent_CaptureEvent(t *testing.T) {
	raw := []byte(`{
		"id": "WH-7YX49823S2290830K-0JE13296W68552352",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource_type": "capture",
		"resource": {
			"id": "42311647XV020574X",
			"status": "COMPLETED",
			"supplementary_data": { "related_ids": { "order_id": "5O190127TN364715T" } }
		}
	}`)

	evt, err := ParseEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, EventPaymentCompleted, evt.Type)
	assert.Equal(t, "WH-7YX49823S2290830K-0JE13296W68552352", evt.ID)

	orderID, ok := evt.OrderID()
	assert.True(t, ok)
	assert.Equal(t, "5O190127TN364715T", orderID)
}

func TestParseEvent_OrderEventUsesResourceID(t *testing.T) {
	evt, err := ParseEvent([]byte(`{"id":"WH-1","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"5O190127TN364715T","status":"APPROVED"}}`))
	require.NoError(t, err)

	orderID, ok := evt.OrderID()
	assert.True(t, ok)
	assert.Equal(t, "5O190127TN364715T", orderID)
}

func TestEventOrderID_Missing(t *testing.T) {
	cases := map[string]string{
		"no supplementary data": `{"event_type":"PAYMENT.CAPTURE.REFUNDED","resource":{"id":"CAP-1"}}`,
		"no related ids":        `{"event_type":"PAYMENT.CAPTURE.DENIED","resource":{"id":"CAP-1","supplementary_data":{}}}`,
		"blank order id":        `{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"supplementary_data":{"related_ids":{"order_id":"  "}}}}`,
		"blank resource id":     `{"event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":""}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			evt, err := ParseEvent([]byte(raw))
			require.NoError(t, err)
			_, ok := evt.OrderID()
			assert.False(t, ok)
		})
	}
}

func TestParseEvent_Invalid(t *testing.T) {
	_, err := ParseEvent([]byte("   "))
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = ParseEvent([]byte(`{"event_type":`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestParseEvent_ResourceShapeDoesNotMatterForUnknownTypes(t *testing.T) {
	bodies := []string{
		`{"id":"WH-F1","event_type":"SOME.FUTURE.EVENT","resource":{"id":12345}}`,
		`{"id":"WH-F2","event_type":"SOME.FUTURE.EVENT","resource":{"status":{"code":"X"}}}`,
		`{"id":"WH-F3","event_type":"SOME.FUTURE.EVENT","resource":[1,2,3]}`,
		`{"id":"WH-F4","event_type":"SOME.FUTURE.EVENT"}`,
	}
	for _, raw := range bodies {
		evt, err := ParseEvent([]byte(raw))
		require.NoError(t, err, raw)
		assert.False(t, evt.Handled())
		_, ok := evt.OrderID()
		assert.False(t, ok)
	}
}

func TestEventOrderID_UndecodableResource(t *testing.T) {
	evt, err := ParseEvent([]byte(`{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":[{"id":"CAP-1"}]}`))
	require.NoError(t, err)
	assert.True(t, evt.Handled())

	_, ok := evt.OrderID()
	assert.False(t, ok)
}
