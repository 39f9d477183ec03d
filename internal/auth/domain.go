package auth

import "time"

// Credential is the stored login secret of an identity together with its
// current role claim.
type Credential struct {
	IdentityID   string
	Email        string
	PasswordHash string
	Role         string
	Disabled     bool
}

// Token is an issued bearer token.
type Token struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
