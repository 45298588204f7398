package models

import "github.com/golang-jwt/jwt/v5"

// ActorRole enumerates the clinical roles supplied by the identity provider.
// The engine records the role as-is; it performs no authorization of its own.
type ActorRole string

const (
	RoleClinician ActorRole = "CLINICIAN"
	RoleAssistant ActorRole = "ASSISTANT"
	RoleAdmin     ActorRole = "ADMIN"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	ActorID  string    `json:"actor_id"`
	Role     ActorRole `json:"role"`
	FullName string    `json:"full_name"`
	jwt.RegisteredClaims
}

// Pagination describes paging metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
