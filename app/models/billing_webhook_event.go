package models

import "time"

// Outcomes recorded for a processed webhook delivery.
const (
	WebhookOutcomeApplied   = "applied"
	WebhookOutcomeNoop      = "noop"
	WebhookOutcomeNotFound  = "not_found"
	WebhookOutcomeMalformed = "malformed"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeFailed    = "failed"
)

// BillingWebhookEvent stores provider webhook payloads with deduplication
// metadata. It doubles as the audit trail of every delivery.
type BillingWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_billing_webhook_events_provider_event,unique,priority:1" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;default:'';index:ux_billing_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	OrderID         string     `gorm:"type:varchar(100);default:'';index" json:"order_id"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	Outcome         string     `gorm:"type:varchar(20);default:''" json:"outcome"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Succeeded reports whether an earlier delivery of the same event finished
// without an internal error, so a redelivery can be acknowledged directly.
func (e *BillingWebhookEvent) Succeeded() bool {
	return e.ProcessedAt != nil && e.Outcome != WebhookOutcomeFailed
}
