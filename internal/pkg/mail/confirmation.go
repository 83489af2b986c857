package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mensajeropro/mensajero/app/models"
	"github.com/mensajeropro/mensajero/internal/pkg/entitlements"
)

const confirmationSubject = "Your MensajeroPRO payment was received"

// ConfirmationNotifier emails a receipt after a completed payment.
type ConfirmationNotifier struct {
	send SendFunc
}

// NewConfirmationNotifier uses send to deliver mail; nil means SendMail.
func NewConfirmationNotifier(send SendFunc) *ConfirmationNotifier {
	if send == nil {
		send = SendMail
	}
	return &ConfirmationNotifier{send: send}
}

func (n *ConfirmationNotifier) SendPaymentConfirmation(ctx context.Context, user *models.User, payment *models.Payment, plan entitlements.Plan) error {
	if user == nil || payment == nil {
		return errors.New("user and payment are required")
	}
	if user.Email == "" {
		return fmt.Errorf("user %d has no email address", user.ID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	err := paymentReceipt(receiptData{
		Username:        user.Username,
		Amount:          payment.Amount.StringFixed(2),
		Currency:        payment.Currency,
		Plan:            string(plan.ID),
		MaxBusinesses:   strconv.Itoa(plan.MaxBusinesses),
		MonthlyMessages: strconv.Itoa(plan.MonthlyMessages),
		OrderID:         payment.ProviderOrderID,
	}).Render(ctx, &body)
	if err != nil {
		return err
	}
	return n.send(user.Email, confirmationSubject, body.String())
}
