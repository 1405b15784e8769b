package account

import (
	"encoding/json"
	"time"

	"golang.org/x/oauth2"
)

type sessionTokenResponse struct {
	SessionToken string `json:"session_token"`
	Code         string `json:"code,omitempty"`
}

// ServiceToken is the short-lived token bundle minted from a session token.
// Raw keeps the full response for passthrough output.
type ServiceToken struct {
	AccessToken string          `json:"access_token"`
	IDToken     string          `json:"id_token"`
	TokenType   string          `json:"token_type,omitempty"`
	ExpiresIn   int             `json:"expires_in,omitempty"`
	Scope       []string        `json:"scope,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// OAuth2Token converts the bundle, stamping the expiry relative to issuedAt.
func (t *ServiceToken) OAuth2Token(issuedAt time.Time) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken: t.AccessToken,
		TokenType:   t.TokenType,
	}
	if t.ExpiresIn > 0 {
		token.Expiry = issuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return token.WithExtra(map[string]any{"id_token": t.IDToken})
}

// UserProfile is the subset of users/me the account login needs, plus a few
// fields worth showing.
type UserProfile struct {
	ID         string          `json:"id"`
	Nickname   string          `json:"nickname,omitempty"`
	ScreenName string          `json:"screenName,omitempty"`
	Country    string          `json:"country"`
	Birthday   string          `json:"birthday"`
	Language   string          `json:"language"`
	Mii        json.RawMessage `json:"mii,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

// Session is everything a credential manager needs to log in to Coral.
type Session struct {
	SessionToken string
	ServiceToken *ServiceToken
	Profile      *UserProfile
}
