package models

import "time"

// Subscription is the user's current paid window. There is at most one row
// per user; renewals extend it and refunds deactivate it.
type Subscription struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UserID              uint      `gorm:"not null;uniqueIndex:ux_subscriptions_user" json:"user_id"`
	PlanType            string    `gorm:"type:varchar(30);not null" json:"plan_type"`
	IsActive            bool      `gorm:"not null;index" json:"is_active"`
	StartDate           time.Time `gorm:"type:timestamp;not null" json:"start_date"`
	EndDate             time.Time `gorm:"type:timestamp;not null;index" json:"end_date"`
	MonthlyMessageLimit int       `gorm:"not null;default:0" json:"monthly_message_limit"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsExpired reports whether the window has ended. EndDate is exclusive.
func (s *Subscription) IsExpired(now time.Time) bool {
	return !now.Before(s.EndDate)
}

// IsValidAt reports whether the subscription grants access at now.
func (s *Subscription) IsValidAt(now time.Time) bool {
	return s != nil && s.IsActive && !s.IsExpired(now)
}
