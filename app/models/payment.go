package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Billing provider constants used across billing-related models.
const (
	BillingProviderPayPal = "paypal"
)

// Payment lifecycle states. Only the billing reconciler moves a payment
// between them.
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusApproved  = "APPROVED"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusDenied    = "DENIED"
	PaymentStatusRefunded  = "REFUNDED"
)

const DefaultCurrency = "USD"

// Payment is one checkout attempt, keyed by the provider's order id.
// Rows are never deleted.
type Payment struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"user_id" validate:"required"`
	ProviderOrderID string          `gorm:"type:varchar(100);not null;uniqueIndex:ux_payments_provider_order_id" json:"provider_order_id" validate:"required,max=100"`
	Amount          decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency        string          `gorm:"type:varchar(3);not null;default:'USD'" json:"currency" validate:"len=3"`
	PlanType        string          `gorm:"type:varchar(30);not null;default:'basic'" json:"plan_type" validate:"required,max=30"`
	Status          string          `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status" validate:"oneof=PENDING APPROVED COMPLETED DENIED REFUNDED"`
	CompletedAt     *time.Time      `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Payment) Validate() error {
	return validator.New().Struct(p)
}

// NewPendingPayment prepares the record written when an order is initiated.
func NewPendingPayment(userID uint, providerOrderID string, amount decimal.Decimal, planType string) *Payment {
	return &Payment{
		UserID:          userID,
		ProviderOrderID: providerOrderID,
		Amount:          amount,
		Currency:        DefaultCurrency,
		PlanType:        planType,
		Status:          PaymentStatusPending,
	}
}
