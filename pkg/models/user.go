package models

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// UserRole represents the role of a user in the system.
type UserRole string

const (
	// RoleUser is a regular account.
	RoleUser UserRole = "user"
	// RoleAdmin can manage other accounts and trigger admin-only operations.
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is a valid UserRole.
func (r UserRole) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Tier represents a subscription tier.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// IsValid checks if the tier is known.
func (t Tier) IsValid() bool {
	return t == TierFree || t == TierPro || t == TierEnterprise
}

// DefaultOCRPageLimit returns the monthly OCR page allowance for the tier.
// A negative limit means unlimited.
func (t Tier) DefaultOCRPageLimit() int {
	switch t {
	case TierPro, TierEnterprise:
		return UnlimitedQuota
	default:
		return 30
	}
}

// NotificationsExempt reports whether quota threshold notifications are
// suppressed for this tier.
func (t Tier) NotificationsExempt() bool {
	return t == TierEnterprise
}

// User represents an rmirror account.
//
// Accounts are created on first authentication against the OAuth provider;
// ExternalAuthID carries the provider-side subject. Deleting a user cascades
// to every owned row (subscription, ledger, notebooks, pages, work items,
// sync records, integrations).
type User struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	Email          string     `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash   string     `gorm:"not null" json:"-"`
	ExternalAuthID string     `gorm:"index;size:255" json:"external_auth_id,omitempty"`
	Role           string     `gorm:"default:user;size:50" json:"role"`
	Enabled        bool       `gorm:"default:true" json:"enabled"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// Validate checks if the user has valid configuration.
func (u *User) Validate() error {
	if u.Email == "" {
		return fmt.Errorf("email is required")
	}
	if u.Role != "" && !UserRole(u.Role).IsValid() {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	return nil
}

// IsAdmin checks if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == string(RoleAdmin)
}

// Subscription ties a user to a billing tier and period.
// Exactly one subscription row exists per user.
type Subscription struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"uniqueIndex;not null;size:36" json:"user_id"`
	Tier        string    `gorm:"not null;default:free;size:50" json:"tier"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Subscription.
func (Subscription) TableName() string {
	return "subscriptions"
}

// GetTier returns the subscription tier, defaulting to free.
func (s *Subscription) GetTier() Tier {
	t := Tier(s.Tier)
	if !t.IsValid() {
		return TierFree
	}
	return t
}

// Password validation errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 characters")
)

// Password length constraints. bcrypt silently truncates at 72 bytes,
// so the upper bound is enforced explicitly.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72

	// DefaultBcryptCost balances security and login latency.
	DefaultBcryptCost = 10
)

// ValidatePassword checks password length constraints.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// HashPassword creates a bcrypt hash of the given password.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a password against the stored hash.
func (u *User) CheckPassword(password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
