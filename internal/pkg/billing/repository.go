package billing

import (
	"context"
	"errors"
	"time"

	"github.com/mensajeropro/mensajero/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service. The
// ...ForUpdate lookups take row locks and are meant to be called inside
// Transaction.
type Repository interface {
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPaymentByOrderIDForUpdate(ctx context.Context, orderID string) (*models.Payment, error)
	TransitionPayment(ctx context.Context, paymentID uint, to string, from []string, completedAt *time.Time) (bool, error)

	GetUser(ctx context.Context, userID uint) (*models.User, error)
	GetUserForUpdate(ctx context.Context, userID uint) (*models.User, error)
	SetUserPlanEntitlements(ctx context.Context, userID uint, role string, maxBusinesses int) error
	ResetUserBusinessQuota(ctx context.Context, userID uint) error

	FindSubscriptionByUserForUpdate(ctx context.Context, userID uint) (*models.Subscription, error)
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
	DeactivateSubscriptions(ctx context.Context, userID uint) (int64, error)

	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, outcome, processingError string) error
	ListWebhookEvents(ctx context.Context, outcome string, limit int) ([]models.BillingWebhookEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormRepository) FindPaymentByOrderIDForUpdate(ctx context.Context, orderID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider_order_id = ?", orderID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// TransitionPayment moves a payment to status to, but only while it is
// still in one of from. It reports false when another writer got there first.
func (r *gormRepository) TransitionPayment(ctx context.Context, paymentID uint, to string, from []string, completedAt *time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if completedAt != nil {
		updates["completed_at"] = completedAt
	}
	tx := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status IN ?", paymentID, from).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	return r.findUser(r.db.WithContext(ctx), userID)
}

func (r *gormRepository) GetUserForUpdate(ctx context.Context, userID uint) (*models.User, error) {
	return r.findUser(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r *gormRepository) findUser(db *gorm.DB, userID uint) (*models.User, error) {
	var u models.User
	err := db.First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) SetUserPlanEntitlements(ctx context.Context, userID uint, role string, maxBusinesses int) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"role": role, "max_businesses": maxBusinesses}).Error
}

func (r *gormRepository) ResetUserBusinessQuota(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("max_businesses", 0).Error
}

func (r *gormRepository) FindSubscriptionByUserForUpdate(ctx context.Context, userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *gormRepository) DeactivateSubscriptions(ctx context.Context, userID uint) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false)
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, outcome, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"outcome":          outcome,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) ListWebhookEvents(ctx context.Context, outcome string, limit int) ([]models.BillingWebhookEvent, error) {
	var events []models.BillingWebhookEvent
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit)
	if outcome != "" {
		q = q.Where("outcome = ?", outcome)
	}
	err := q.Find(&events).Error
	return events, err
}
