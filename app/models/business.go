package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Business is a WhatsApp-connected business owned by a user. The number of
// businesses a user owns is what the business quota is checked against.
type Business struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OwnerID        uint      `gorm:"not null;index:idx_businesses_owner_created,priority:1" json:"owner_id"`
	Name           string    `gorm:"type:varchar(200);not null" json:"name" validate:"required,min=1,max=200"`
	Description    string    `gorm:"type:text" json:"description"`
	WhatsAppNumber string    `gorm:"type:varchar(20);default:''" json:"whatsapp_number" validate:"max=20"`
	WhatsAppToken  string    `gorm:"type:varchar(500);default:''" json:"-" validate:"max=500"`
	AIContext      string    `gorm:"type:text" json:"ai_context"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index:idx_businesses_owner_created,priority:2" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b *Business) Validate() error {
	return validator.New().Struct(b)
}
