package domain

import "time"

// UserStatus enumerates account lifecycle states. Accounts are never deleted,
// only deactivated.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// User represents an authenticated account within the platform. Tier is empty
// until an administrator assigns one; an unassigned tier blocks login and
// every quota-consuming operation until the assignment happens.
type User struct {
	ID               string
	Username         string
	PasswordHash     string
	Tier             Tier // empty string means unassigned
	Status           UserStatus
	LastLogin        *time.Time
	LastLoginCountry string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasTier reports whether an administrator has assigned a tier.
func (u User) HasTier() bool {
	return u.Tier != ""
}

// IsAdmin reports whether the user holds the founder tier, which doubles as
// the admin role.
func (u User) IsAdmin() bool {
	return u.Tier == TierFounder
}

// IsActive reports whether the account may authenticate.
func (u User) IsActive() bool {
	return u.Status == "" || u.Status == UserStatusActive
}

// CanAccess reports whether the account may sign in and use the service. A
// suspended account and an unassigned tier fail with distinct errors so
// callers can surface "wait for an administrator" separately.
func (u User) CanAccess() error {
	if !u.IsActive() {
		return ErrUserSuspended
	}
	if !u.HasTier() {
		return ErrTierUnassigned
	}
	return nil
}
