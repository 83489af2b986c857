package repository

import (
	"time"

	"github.com/mensajeropro/mensajero/app/models"
	"github.com/mensajeropro/mensajero/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	TouchLastLogin(id uint, at time.Time) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	GetEntitlementSnapshot(userID uint) (*entitlements.Snapshot, error)
}

// BusinessRepository defines the interface for business-related database operations
type BusinessRepository interface {
	GetByID(id uint) (*models.Business, error)
	ListByOwner(ownerID uint) ([]models.Business, error)
	CountByOwner(ownerID uint) (int64, error)
	CreateWithinQuota(business *models.Business, now time.Time) (*entitlements.Entitlements, error)
}

// PaymentRepository defines read access to a user's payment history
type PaymentRepository interface {
	GetByOrderID(orderID string) (*models.Payment, error)
	ListByUser(userID uint, limit int) ([]models.Payment, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User     UserRepository
	Business BusinessRepository
	Payment  PaymentRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db),
		Business: NewBusinessRepository(db),
		Payment:  NewPaymentRepository(db),
	}
}
