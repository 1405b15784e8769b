package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/nso-bridge/nsoctl/pkg/nso"
	"github.com/nso-bridge/nsoctl/pkg/secretstore"
)

// ErrNotAuthenticated is returned by Bootstrap when no session token is known
// and there is no way to ask the user for a callback URL.
var ErrNotAuthenticated = errors.New("no session token available; run 'nsoctl auth login'")

// CallbackSource shows authorizeURL to the user and returns the callback URL
// they were redirected to.
type CallbackSource func(ctx context.Context, authorizeURL string) (string, error)

// StoredSessionToken reads the persisted session token, returning "" when
// none is stored.
func StoredSessionToken(store secretstore.Store) (string, error) {
	if store == nil {
		return "", nil
	}
	token, err := store.Get(secretstore.KeySessionToken)
	if errors.Is(err, secretstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", &nso.SecretStoreError{Op: "get", Key: secretstore.KeySessionToken, Err: err}
	}
	return token, nil
}

// Bootstrap runs every stage needed before a Coral login. sessionToken wins
// when set, then a token persisted in the negotiator's store, and only then
// the interactive authorization through callback.
func (n *Negotiator) Bootstrap(ctx context.Context, sessionToken string, callback CallbackSource) (*Session, error) {
	if sessionToken == "" {
		stored, err := StoredSessionToken(n.store)
		if err != nil {
			return nil, err
		}
		sessionToken = stored
	}
	if sessionToken == "" {
		if callback == nil {
			return nil, ErrNotAuthenticated
		}
		authURL, err := n.Authorize(ctx)
		if err != nil {
			return nil, err
		}
		callbackURL, err := callback(ctx, authURL)
		if err != nil {
			return nil, fmt.Errorf("failed to read callback url: %w", err)
		}
		sessionToken, err = n.ExchangeCallback(ctx, callbackURL)
		if err != nil {
			return nil, err
		}
	}

	serviceToken, err := n.ServiceToken(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	profile, err := n.UserProfile(ctx, serviceToken.AccessToken)
	if err != nil {
		return nil, err
	}
	return &Session{SessionToken: sessionToken, ServiceToken: serviceToken, Profile: profile}, nil
}
