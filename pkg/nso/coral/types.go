package coral

import "encoding/json"

// LoginParameter is the body of /v3/Account/Login: a flapg proof plus the
// account holder's profile fields.
type LoginParameter struct {
	F          string `json:"f"`
	NAIDToken  string `json:"naIdToken"`
	Timestamp  string `json:"timestamp"`
	RequestID  string `json:"requestId"`
	NACountry  string `json:"naCountry"`
	NABirthday string `json:"naBirthday"`
	Language   string `json:"language"`
}

type loginRequest struct {
	Parameter LoginParameter `json:"parameter"`
}

type Credential struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn,omitempty"`
}

type User struct {
	ID       int64  `json:"id"`
	NSAID    string `json:"nsaId,omitempty"`
	Name     string `json:"name,omitempty"`
	ImageURI string `json:"imageUri,omitempty"`
}

type LoginResult struct {
	User                   User        `json:"user"`
	WebAPIServerCredential *Credential `json:"webApiServerCredential"`
	FirebaseCredential     *Credential `json:"firebaseCredential,omitempty"`
}

// AccountLoginResult is the Coral login response. Its web API server
// credential is the bearer every service call presents.
type AccountLoginResult struct {
	Status        int          `json:"status"`
	Result        *LoginResult `json:"result"`
	CorrelationID string       `json:"correlationId,omitempty"`
}

// AccessToken returns the nested bearer credential, or "" when absent.
func (r *AccountLoginResult) AccessToken() string {
	if r == nil || r.Result == nil || r.Result.WebAPIServerCredential == nil {
		return ""
	}
	return r.Result.WebAPIServerCredential.AccessToken
}

// Response is the envelope of every service call. Raw keeps the undecoded
// body for passthrough output.
type Response[T any] struct {
	Status        int             `json:"status"`
	Result        T               `json:"result"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Raw           json.RawMessage `json:"-"`
}

type Game struct {
	Name     string `json:"name,omitempty"`
	ImageURI string `json:"imageUri,omitempty"`
}

type Presence struct {
	State     string `json:"state"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
	LogoutAt  int64  `json:"logoutAt,omitempty"`
	Game      Game   `json:"game"`
}

type Friend struct {
	ID               int64    `json:"id"`
	NSAID            string   `json:"nsaId"`
	Name             string   `json:"name"`
	ImageURI         string   `json:"imageUri,omitempty"`
	IsFavoriteFriend bool     `json:"isFavoriteFriend"`
	IsServiceUser    bool     `json:"isServiceUser"`
	FriendCreatedAt  int64    `json:"friendCreatedAt,omitempty"`
	Presence         Presence `json:"presence"`
}

type FriendList struct {
	Friends []Friend `json:"friends"`
}

type Self struct {
	ID       int64    `json:"id"`
	NSAID    string   `json:"nsaId"`
	Name     string   `json:"name"`
	ImageURI string   `json:"imageUri,omitempty"`
	Presence Presence `json:"presence"`
}
