package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims are the claims of an access token issued by the login gate.
type TokenClaims struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}
