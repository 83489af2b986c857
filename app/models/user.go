package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	ROLE_SUPERADMIN = "superadmin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// UnlimitedBusinesses is the quota stored for superadmins. The projector
// never reads it; it only keeps the column meaningful for reporting.
const UnlimitedBusinesses = 999999

type User struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Username        string     `gorm:"type:varchar(150);uniqueIndex:ux_users_username;not null" json:"username" validate:"required,min=3,max=150"`
	Email           string     `gorm:"type:varchar(200);uniqueIndex:ux_users_email;not null" json:"email" validate:"required,email,min=5,max=200"`
	Password        string     `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role            string     `gorm:"type:varchar(20);not null;default:'user'" json:"role" validate:"oneof=user admin superadmin"`
	Status          string     `gorm:"type:varchar(50);not null;default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	IsSuperuser     bool       `gorm:"not null;default:false" json:"is_superuser"`
	MaxBusinesses   int        `gorm:"not null;default:0" json:"max_businesses"`
	APIKeyHash      string     `gorm:"type:char(64);default:'';index:idx_users_api_key_hash" json:"-"`
	APIKeyPrefix    string     `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt *time.Time `gorm:"type:timestamp;default:null" json:"api_key_created_at,omitempty"`
	LastLoginAt     *time.Time `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func CreateUser(username string, email string, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Username: username,
		Email:    email,
		Password: pw,
		Role:     ROLE_USER,
		Status:   STATUS_ACTIVE,
	}

	err = u.Validate()
	if err != nil {
		return nil, err
	}

	return u, nil
}

// CreateSuperadmin builds a superadmin with unlimited business access.
func CreateSuperadmin(username string, email string, password string) (*User, error) {
	u, err := CreateUser(username, email, password)
	if err != nil {
		return nil, err
	}
	u.Role = ROLE_SUPERADMIN
	u.IsSuperuser = true
	u.MaxBusinesses = UnlimitedBusinesses
	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

// IsSuperadmin reports whether the user has free, unlimited access.
func (u *User) IsSuperadmin() bool {
	return u.Role == ROLE_SUPERADMIN || u.IsSuperuser
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "msj_"

// HasActiveAPIKey reports whether the user has an API key configured
func (u *User) HasActiveAPIKey() bool {
	return u != nil && u.APIKeyHash != ""
}

// IssueAPIKey generates a new API key, stores its hash on the struct and
// returns the raw secret. Callers must persist the user afterwards.
func (u *User) IssueAPIKey() (string, error) {
	rawKey, prefix, hash, err := generateAPIKeyMaterial()
	if err != nil {
		return "", err
	}
	now := time.Now()
	u.APIKeyHash = hash
	u.APIKeyPrefix = prefix
	u.APIKeyCreatedAt = &now
	return rawKey, nil
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func generateAPIKeyMaterial() (string, string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", err
	}
	rawKey := apiKeyPrefix + strings.ToLower(apiKeyEncoding.EncodeToString(b))
	if len(rawKey) < 12 {
		return "", "", "", fmt.Errorf("api key generation failed: key too short")
	}
	return rawKey, rawKey[:16], HashAPIKey(rawKey), nil
}
