package repository

import (
	"time"

	"github.com/mensajeropro/mensajero/app/models"
	"github.com/mensajeropro/mensajero/internal/pkg/entitlements"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type businessRepository struct {
	db *gorm.DB
}

// NewBusinessRepository creates a new business repository instance
func NewBusinessRepository(db *gorm.DB) BusinessRepository {
	return &businessRepository{db: db}
}

func (r *businessRepository) GetByID(id uint) (*models.Business, error) {
	var b models.Business
	if err := r.db.First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *businessRepository) ListByOwner(ownerID uint) ([]models.Business, error) {
	var out []models.Business
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (r *businessRepository) CountByOwner(ownerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Business{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count, err
}

// CreateWithinQuota inserts business for its owner if the owner's
// entitlements allow one more. The owner row is locked for the duration, so
// concurrent creations cannot both take the last free slot. The returned
// entitlements are the ones the decision was made on.
func (r *businessRepository) CreateWithinQuota(business *models.Business, now time.Time) (*entitlements.Entitlements, error) {
	if err := business.Validate(); err != nil {
		return nil, err
	}

	var ent entitlements.Entitlements
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var owner models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&owner, business.OwnerID).Error; err != nil {
			return err
		}
		snap, err := loadSnapshot(tx, owner.ID)
		if err != nil {
			return err
		}
		ent = entitlements.Project(*snap, now)
		if err := ent.CheckCreateBusiness(); err != nil {
			return err
		}
		return tx.Create(business).Error
	})
	if err != nil {
		return &ent, err
	}
	return &ent, nil
}
