// Package testutil holds fixtures shared by package tests. It is imported
// from _test.go files only.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mensajeropro/mensajero/app/models"
	"github.com/mensajeropro/mensajero/internal/pkg/database"
)

// NewTestDB opens a private in-memory SQLite database with the full schema.
// A single connection is used so concurrent callers queue on it the way
// they would queue on row locks in MySQL.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user with the given role and quota.
func CreateUser(t testing.TB, db *gorm.DB, username, role string, maxBusinesses int) *models.User {
	t.Helper()

	u := &models.User{
		Username:      username,
		Email:         username + "@example.com",
		Password:      "x",
		Role:          role,
		Status:        models.STATUS_ACTIVE,
		MaxBusinesses: maxBusinesses,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// CreatePayment inserts a payment in the given status.
func CreatePayment(t testing.TB, db *gorm.DB, p *models.Payment) *models.Payment {
	t.Helper()

	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create payment %s: %v", p.ProviderOrderID, err)
	}
	return p
}
