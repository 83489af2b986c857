package billing

import (
	"strings"

	"github.com/mensajeropro/mensajero/app/models"
)

// paymentTransitions lists every legal status move. PENDING may jump
// straight to COMPLETED because the capture event can overtake the
// approval event. DENIED and REFUNDED are terminal.
var paymentTransitions = map[string][]string{
	models.PaymentStatusPending:   {models.PaymentStatusApproved, models.PaymentStatusCompleted, models.PaymentStatusDenied},
	models.PaymentStatusApproved:  {models.PaymentStatusCompleted},
	models.PaymentStatusCompleted: {models.PaymentStatusRefunded},
}

func normalizeStatus(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}

// canTransition reports whether a payment in from may move to to.
// Staying in the same status is never a transition.
func canTransition(from, to string) bool {
	from, to = normalizeStatus(from), normalizeStatus(to)
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// predecessorsOf returns the statuses a payment may be in for a move to to
// to be legal. It drives the guard of the conditional status update.
func predecessorsOf(to string) []string {
	to = normalizeStatus(to)
	var out []string
	for from, nexts := range paymentTransitions {
		for _, next := range nexts {
			if next == to {
				out = append(out, from)
			}
		}
	}
	return out
}
