package account

import (
	"errors"
	"regexp"
)

// ErrNoSessionTokenCode is returned when a callback URL carries no session
// token code.
var ErrNoSessionTokenCode = errors.New("no session token code found in callback")

// The code is an HS256 JWT, so its header segment is always the same.
var sessionTokenCodePattern = regexp.MustCompile(`eyJhbGciOiJIUzI1NiJ9\.[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`)

// ExtractSessionTokenCode returns the first session token code found in the
// npf<client_id>://auth callback URL the user copied from their browser.
func ExtractSessionTokenCode(callbackURL string) (string, error) {
	code := sessionTokenCodePattern.FindString(callbackURL)
	if code == "" {
		return "", ErrNoSessionTokenCode
	}
	return code, nil
}
