package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrTierUnassigned  = errors.New("tier not assigned")
	ErrInvalidTier     = errors.New("invalid tier")
	ErrInvalidStyle    = errors.New("invalid style")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrDuplicateUser   = errors.New("username already taken")
	ErrUserSuspended   = errors.New("account suspended")
)
