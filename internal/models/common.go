package models

import "github.com/golang-jwt/jwt/v5"

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// UserRole labels the actor kinds that operate the finance workflow.
type UserRole string

// Roles recognised by the JWT middleware.
const (
	RolePrincipal UserRole = "PRINCIPAL"
	RoleTeacher   UserRole = "TEACHER"
	RoleAdmin     UserRole = "ADMIN"
)

// JWTClaims represents the JWT payload for access tokens issued by the
// surrounding platform. This service only consumes them.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
