package billing

import (
	"context"

	"github.com/mensajeropro/mensajero/app/models"
	"github.com/mensajeropro/mensajero/internal/pkg/entitlements"
)

// Notifier tells a user that a payment went through.
type Notifier interface {
	SendPaymentConfirmation(ctx context.Context, user *models.User, payment *models.Payment, plan entitlements.Plan) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, user *models.User, payment *models.Payment, plan entitlements.Plan) error

func (f NotifierFunc) SendPaymentConfirmation(ctx context.Context, user *models.User, payment *models.Payment, plan entitlements.Plan) error {
	return f(ctx, user, payment, plan)
}

type noopNotifier struct{}

func (noopNotifier) SendPaymentConfirmation(context.Context, *models.User, *models.Payment, entitlements.Plan) error {
	return nil
}
