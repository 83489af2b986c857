package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mensajeropro/mensajero/app/models"
)

// EventType is the PayPal webhook event_type. Values outside the constants
// below are valid input and are acknowledged without effect.
type EventType string

const (
	EventOrderApproved    EventType = "CHECKOUT.ORDER.APPROVED"
	EventPaymentCompleted EventType = "PAYMENT.CAPTURE.COMPLETED"
	EventPaymentDenied    EventType = "PAYMENT.CAPTURE.DENIED"
	EventPaymentRefunded  EventType = "PAYMENT.CAPTURE.REFUNDED"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrUnknownPlan          = errors.New("unknown plan")
	ErrEmptyPayload         = errors.New("empty webhook payload")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
	ErrOrderIDMissing       = errors.New("event carries no order id")
	ErrIllegalTransition    = errors.New("illegal payment status transition")
)

// Event is the part of a PayPal webhook body the reconciler reads. The
// resource stays raw until the event type is known, because its shape
// depends on it.
type Event struct {
	ID       string          `json:"id"`
	Type     EventType       `json:"event_type"`
	Resource json.RawMessage `json:"resource"`
}

// Resource is the resource object of the handled event types. For order
// events it is the order itself; for capture events it is the capture,
// which points back to its order through supplementary_data.related_ids.
type Resource struct {
	ID                string             `json:"id"`
	SupplementaryData *SupplementaryData `json:"supplementary_data,omitempty"`
}

type SupplementaryData struct {
	RelatedIDs *RelatedIDs `json:"related_ids,omitempty"`
}

type RelatedIDs struct {
	OrderID string `json:"order_id"`
}

// ParseEvent decodes the envelope of a raw webhook body.
func ParseEvent(payload []byte) (*Event, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return nil, ErrEmptyPayload
	}
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	evt.ID = strings.TrimSpace(evt.ID)
	evt.Type = EventType(strings.TrimSpace(string(evt.Type)))
	return &evt, nil
}

// Handled reports whether the reconciler acts on this event type.
func (e *Event) Handled() bool {
	switch e.Type {
	case EventOrderApproved, EventPaymentCompleted, EventPaymentDenied, EventPaymentRefunded:
		return true
	}
	return false
}

// OrderID returns the provider order id a handled event refers to and
// whether it was present. Order events carry it as resource.id, capture
// events in the nested related ids. A resource that does not decode counts
// as missing.
func (e *Event) OrderID() (string, bool) {
	if !e.Handled() || len(e.Resource) == 0 {
		return "", false
	}
	var r Resource
	if err := json.Unmarshal(e.Resource, &r); err != nil {
		return "", false
	}
	if e.Type == EventOrderApproved {
		id := strings.TrimSpace(r.ID)
		return id, id != ""
	}
	if r.SupplementaryData == nil || r.SupplementaryData.RelatedIDs == nil {
		return "", false
	}
	id := strings.TrimSpace(r.SupplementaryData.RelatedIDs.OrderID)
	return id, id != ""
}

// Outcome classifies what handling an event did.
type Outcome string

const (
	OutcomeApplied   Outcome = models.WebhookOutcomeApplied
	OutcomeNoop      Outcome = models.WebhookOutcomeNoop
	OutcomeNotFound  Outcome = models.WebhookOutcomeNotFound
	OutcomeMalformed Outcome = models.WebhookOutcomeMalformed
	OutcomeIgnored   Outcome = models.WebhookOutcomeIgnored
)

// Result reports the effect of one Handle call.
type Result struct {
	EventType  EventType `json:"event_type"`
	OrderID    string    `json:"order_id,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	PaymentID  uint      `json:"payment_id,omitempty"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	OrderID         string
	PayloadJSON     string
	SignatureValid  bool
}

// WebhookResult is what the webhook endpoint reports back to the provider.
type WebhookResult struct {
	Duplicate bool
	Result    *Result
}
