package entitlements

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/mensajeropro/mensajero/app/models"
)

var (
	ErrSubscriptionRequired = errors.New("an active subscription is required to create businesses")
	ErrBusinessLimitReached = errors.New("business limit reached")
)

// Snapshot is the input of Project. It must come from a single consistent
// read of the user, the subscription and the owned business count.
type Snapshot struct {
	User          models.User
	Subscription  *models.Subscription
	BusinessCount int64
}

// Limit is a business quota that can be unlimited. It serialises as a
// number or as the string "unlimited".
type Limit struct {
	Unlimited bool
	Value     int
}

func (l Limit) MarshalJSON() ([]byte, error) {
	if l.Unlimited {
		return json.Marshal("unlimited")
	}
	return []byte(strconv.Itoa(l.Value)), nil
}

func (l Limit) String() string {
	if l.Unlimited {
		return "unlimited"
	}
	return strconv.Itoa(l.Value)
}

// Entitlements are the capabilities derived from a Snapshot.
type Entitlements struct {
	IsSuperadmin          bool       `json:"is_superadmin"`
	CanCreateBusiness     bool       `json:"can_create_business"`
	BusinessLimit         Limit      `json:"business_limit"`
	BusinessCount         int64      `json:"business_count"`
	HasActiveSubscription bool       `json:"has_active_subscription"`
	NeedsUpgrade          bool       `json:"needs_upgrade"`
	RequiresPayment       bool       `json:"requires_payment"`
	PlanType              string     `json:"plan_type,omitempty"`
	MonthlyMessageLimit   int        `json:"monthly_message_limit"`
	SubscriptionEndsAt    *time.Time `json:"subscription_ends_at,omitempty"`
}

// Project computes entitlements. It has no side effects and reads nothing
// but its arguments.
func Project(s Snapshot, now time.Time) Entitlements {
	superadmin := s.User.IsSuperadmin()
	e := Entitlements{
		IsSuperadmin:          superadmin,
		BusinessCount:         s.BusinessCount,
		CanCreateBusiness:     superadmin || s.BusinessCount < int64(s.User.MaxBusinesses),
		HasActiveSubscription: s.Subscription.IsValidAt(now),
	}
	if superadmin {
		e.BusinessLimit = Limit{Unlimited: true}
	} else {
		e.BusinessLimit = Limit{Value: s.User.MaxBusinesses}
	}
	e.NeedsUpgrade = !superadmin && !e.CanCreateBusiness
	e.RequiresPayment = !superadmin && !e.HasActiveSubscription

	if s.Subscription != nil {
		e.PlanType = s.Subscription.PlanType
		end := s.Subscription.EndDate
		e.SubscriptionEndsAt = &end
		if e.HasActiveSubscription {
			e.MonthlyMessageLimit = s.Subscription.MonthlyMessageLimit
		}
	}
	return e
}

// CheckCreateBusiness applies the business-creation rule: superadmins always
// pass, everyone else needs a live subscription and free quota.
func (e Entitlements) CheckCreateBusiness() error {
	if e.IsSuperadmin {
		return nil
	}
	if !e.HasActiveSubscription {
		return ErrSubscriptionRequired
	}
	if !e.CanCreateBusiness {
		return ErrBusinessLimitReached
	}
	return nil
}
