package services

import (
	"kpitracker/apperrors"
	"kpitracker/identity"
)

// RequireAdmin denies callers without the admin role.
func RequireAdmin(caller *identity.Claims) error {
	if caller == nil {
		return apperrors.Unauthenticated("Authentication required")
	}
	if !caller.IsAdmin() {
		return apperrors.Forbidden("Admin role required")
	}
	return nil
}

// RequireSelf denies callers acting for a UID other than their own.
func RequireSelf(caller *identity.Claims, uid string) error {
	if caller == nil {
		return apperrors.Unauthenticated("Authentication required")
	}
	if caller.UID != uid {
		return apperrors.Forbidden("Cannot act on behalf of another user")
	}
	return nil
}

// CanRead reports whether caller may read uid's data: admins read anyone, others only themselves.
func CanRead(caller *identity.Claims, uid string) bool {
	return caller != nil && (caller.IsAdmin() || caller.UID == uid)
}
