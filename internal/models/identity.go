package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents a role tag carried in access tokens.
type UserRole string

const (
	RoleSuperAdmin        UserRole = "SUPERADMIN"
	RoleInstitutionEditor UserRole = "INSTITUTION_EDITOR"
)

// JWTClaims is the access token payload issued by the external identity provider.
type JWTClaims struct {
	UserID        string   `json:"user_id"`
	InstitutionID *int64   `json:"institution_id,omitempty"`
	Roles         []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry role.
func (c *JWTClaims) HasRole(role UserRole) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if UserRole(r) == role {
			return true
		}
	}
	return false
}

// IsSuperAdmin reports whether the caller may bypass institution scoping and closed windows.
func (c *JWTClaims) IsSuperAdmin() bool {
	return c.HasRole(RoleSuperAdmin)
}

// CanActFor reports whether the caller may read or write institutionID's data.
func (c *JWTClaims) CanActFor(institutionID int64) bool {
	if c == nil {
		return false
	}
	if c.IsSuperAdmin() {
		return true
	}
	return c.InstitutionID != nil && *c.InstitutionID == institutionID
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
