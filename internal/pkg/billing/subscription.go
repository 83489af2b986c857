package billing

import (
	"time"

	"github.com/mensajeropro/mensajero/app/models"
	"github.com/mensajeropro/mensajero/internal/pkg/entitlements"
)

// SubscriptionPeriod is the length of the window one payment buys.
const SubscriptionPeriod = 30 * 24 * time.Hour

// newSubscription opens a first window [now, now+period).
func newSubscription(userID uint, plan entitlements.Plan, now time.Time) *models.Subscription {
	return &models.Subscription{
		UserID:              userID,
		PlanType:            string(plan.ID),
		IsActive:            true,
		StartDate:           now,
		EndDate:             now.Add(SubscriptionPeriod),
		MonthlyMessageLimit: plan.MonthlyMessages,
	}
}

// renewSubscription extends sub by one period. A lapsed window restarts at
// now; a running one keeps its unused time. The plan switches immediately.
func renewSubscription(sub *models.Subscription, plan entitlements.Plan, now time.Time) {
	if sub.EndDate.Before(now) {
		sub.StartDate = now
		sub.EndDate = now.Add(SubscriptionPeriod)
	} else {
		sub.EndDate = sub.EndDate.Add(SubscriptionPeriod)
	}
	sub.PlanType = string(plan.ID)
	sub.IsActive = true
	sub.MonthlyMessageLimit = plan.MonthlyMessages
}
