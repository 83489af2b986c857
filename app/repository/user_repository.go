package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/mensajeropro/mensajero/app/models"
	"github.com/mensajeropro/mensajero/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", strings.TrimSpace(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByAPIKeyHash resolves an API key hash to its user.
func (r *userRepository) GetByAPIKeyHash(hash string) (*models.User, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	if err := r.db.Where("api_key_hash = ? AND api_key_hash <> ''", trimmed).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

func (r *userRepository) TouchLastLogin(id uint, at time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("last_login_at", at).Error
}

func (r *userRepository) List(offset, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Order("id ASC").Offset(offset).Limit(limit).Find(&users).Error
	return users, err
}

func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}

// GetEntitlementSnapshot reads the user, the subscription and the business
// count inside one transaction so the projection sees a single state.
func (r *userRepository) GetEntitlementSnapshot(userID uint) (*entitlements.Snapshot, error) {
	var snap *entitlements.Snapshot
	err := r.db.Transaction(func(tx *gorm.DB) error {
		s, err := loadSnapshot(tx, userID)
		snap = s
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func loadSnapshot(tx *gorm.DB, userID uint) (*entitlements.Snapshot, error) {
	var snap entitlements.Snapshot
	if err := tx.First(&snap.User, userID).Error; err != nil {
		return nil, err
	}

	var sub models.Subscription
	err := tx.Where("user_id = ?", userID).First(&sub).Error
	switch {
	case err == nil:
		snap.Subscription = &sub
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if err := tx.Model(&models.Business{}).Where("owner_id = ?", userID).Count(&snap.BusinessCount).Error; err != nil {
		return nil, err
	}
	return &snap, nil
}
