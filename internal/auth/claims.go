package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Identity is a bare account id; there is no tenancy or role model here.
type Claims struct {
	jwt.RegisteredClaims

	AccountID string    `json:"account_id"`
	TokenType TokenType `json:"token_type"`
}
