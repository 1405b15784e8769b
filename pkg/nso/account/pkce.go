package account

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
)

const stateBytes = 36

// PKCE holds the per-attempt secrets. Every value is base64url without
// padding, ready to be sent as is.
type PKCE struct {
	State     string
	Verifier  string
	Challenge string
}

func NewPKCE() (PKCE, error) {
	state, err := randomToken(stateBytes)
	if err != nil {
		return PKCE{}, err
	}
	verifier := oauth2.GenerateVerifier()
	return PKCE{
		State:     state,
		Verifier:  verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
	}, nil
}

func randomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
