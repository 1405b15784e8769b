package account

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type tokenClaims struct {
	Type string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// TokenInfo is what can be read from a Nintendo JWT without its signing key.
type TokenInfo struct {
	Type      string    `json:"type,omitempty" yaml:"type,omitempty"`
	Subject   string    `json:"subject,omitempty" yaml:"subject,omitempty"`
	Issuer    string    `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	IssuedAt  time.Time `json:"issuedAt,omitempty" yaml:"issuedAt,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
}

// Expired reports whether the token carries an expiry that lies before now.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// InspectToken decodes the claims of a session token, session token code or
// id token. The signature is not verified.
func InspectToken(token string) (*TokenInfo, error) {
	parser := jwt.Parser{}
	claims := &tokenClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	info := &TokenInfo{
		Type:    claims.Type,
		Subject: claims.Subject,
		Issuer:  claims.Issuer,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
