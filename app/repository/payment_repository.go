package repository

import (
	"github.com/mensajeropro/mensajero/app/models"
	"gorm.io/gorm"
)

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetByOrderID(orderID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("provider_order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) ListByUser(userID uint, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []models.Payment
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error
	return out, err
}
