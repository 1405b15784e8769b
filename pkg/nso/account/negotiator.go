package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/nso-bridge/nsoctl/pkg/nso"
	"github.com/nso-bridge/nsoctl/pkg/nso/transport"
	"github.com/nso-bridge/nsoctl/pkg/secretstore"
)

const (
	DefaultClientID       = "71b963c1b7b6d119"
	DefaultAccountsURL    = "https://accounts.nintendo.com"
	DefaultAccountsAPIURL = "https://api.accounts.nintendo.com"
	DefaultClientVersion  = "unknown"
	DefaultLanguage       = "en-US"

	sessionTokenGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer-session-token"
	coralServiceUserAgent = "Coral/2.0.0 (com.nintendo.znca; build:1489; iOS 15.3.1) Alamofire/5.4.4"
	authorizePath         = "/connect/1.0.0/authorize"
	sessionTokenPath      = "/connect/1.0.0/api/session_token"
	serviceTokenPath      = "/connect/1.0.0/api/token"
	userProfilePath       = "/2.0.0/users/me"
	authorizeTheme        = "login_form"
	challengeMethod       = "S256"
	responseType          = "session_token_code"
)

// Scopes requested during authorization.
var Scopes = []string{"openid", "user", "user.birthday", "user.mii", "user.screenName"}

// Phase is the negotiator's position in one authorization attempt.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseAuthorizeRequested
	PhaseSessionTokenObtained
	PhaseServiceTokenObtained
	PhaseProfileFetched
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "Init"
	case PhaseAuthorizeRequested:
		return "AuthorizeRequested"
	case PhaseSessionTokenObtained:
		return "SessionTokenObtained"
	case PhaseServiceTokenObtained:
		return "ServiceTokenObtained"
	case PhaseProfileFetched:
		return "ProfileFetched"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

type Config struct {
	ClientID       string
	AccountsURL    string
	AccountsAPIURL string
	// ClientVersion is reported in the authorize request's User-Agent.
	ClientVersion string
	Language      string
}

// Negotiator drives the Nintendo account exchange: authorize, session token,
// service token and user profile. Its PKCE material is generated once in New
// and never changes; a failed exchange leaves the phase untouched so the
// stage can be retried.
type Negotiator struct {
	http  *resty.Client
	cfg   Config
	pkce  PKCE
	oauth oauth2.Config
	store secretstore.Store
	log   *zap.SugaredLogger

	mu    sync.Mutex
	phase Phase
}

type Option func(*Negotiator)

// WithStore persists obtained session tokens.
func WithStore(store secretstore.Store) Option {
	return func(n *Negotiator) { n.store = store }
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(n *Negotiator) {
		if log != nil {
			n.log = log
		}
	}
}

func New(httpClient *resty.Client, cfg Config, opts ...Option) (*Negotiator, error) {
	if httpClient == nil {
		return nil, errors.New("http client is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.AccountsURL == "" {
		cfg.AccountsURL = DefaultAccountsURL
	}
	if cfg.AccountsAPIURL == "" {
		cfg.AccountsAPIURL = DefaultAccountsAPIURL
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = DefaultClientVersion
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	cfg.AccountsURL = strings.TrimRight(cfg.AccountsURL, "/")
	cfg.AccountsAPIURL = strings.TrimRight(cfg.AccountsAPIURL, "/")

	pkce, err := NewPKCE()
	if err != nil {
		return nil, err
	}
	n := &Negotiator{
		http: httpClient,
		cfg:  cfg,
		pkce: pkce,
		oauth: oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: RedirectURI(cfg.ClientID),
			Scopes:      Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AccountsURL + authorizePath,
				TokenURL: cfg.AccountsURL + serviceTokenPath,
			},
		},
		log: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// RedirectURI is the app scheme the account site redirects to after login.
func RedirectURI(clientID string) string {
	return "npf" + clientID + "://auth"
}

func (n *Negotiator) PKCE() PKCE {
	return n.pkce
}

func (n *Negotiator) Phase() Phase {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.phase
}

func (n *Negotiator) advance(p Phase) {
	n.mu.Lock()
	n.phase = p
	n.mu.Unlock()
}

// AuthorizationURL is the URL the user opens to log in. It carries the PKCE
// challenge and state, never the verifier.
func (n *Negotiator) AuthorizationURL() string {
	return n.oauth.AuthCodeURL(n.pkce.State,
		oauth2.SetAuthURLParam("response_type", responseType),
		oauth2.SetAuthURLParam("session_token_code_challenge", n.pkce.Challenge),
		oauth2.SetAuthURLParam("session_token_code_challenge_method", challengeMethod),
		oauth2.SetAuthURLParam("theme", authorizeTheme),
	)
}

// Authorize sends the authorization request and returns the URL the user has
// to open. The login itself happens out of band; feed the resulting callback
// URL to ExchangeCallback.
func (n *Negotiator) Authorize(ctx context.Context) (string, error) {
	authURL := n.AuthorizationURL()
	resp, err := n.http.R().
		SetContext(ctx).
		SetHeader("User-Agent", fmt.Sprintf("OnlineLounge/%s NASDKAPI Android", n.cfg.ClientVersion)).
		Get(authURL)
	if err := transport.Check(nso.StageAuthorize, resp, err); err != nil {
		return "", err
	}
	n.advance(PhaseAuthorizeRequested)
	n.log.Debugw("Authorization requested", "url", authURL)
	return authURL, nil
}

// ExchangeCallback extracts the session token code from callbackURL and
// trades it for a session token.
func (n *Negotiator) ExchangeCallback(ctx context.Context, callbackURL string) (string, error) {
	code, err := ExtractSessionTokenCode(callbackURL)
	if err != nil {
		return "", err
	}
	return n.SessionToken(ctx, code)
}

// SessionToken trades a session token code plus the PKCE verifier for a
// long-lived session token and persists it when a store is configured.
func (n *Negotiator) SessionToken(ctx context.Context, sessionTokenCode string) (string, error) {
	resp, err := n.http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Accept-Language": n.cfg.Language,
			"Accept":          "application/json",
		}).
		SetFormData(map[string]string{
			"client_id":                   n.cfg.ClientID,
			"session_token_code":          sessionTokenCode,
			"session_token_code_verifier": n.pkce.Verifier,
		}).
		Post(n.cfg.AccountsURL + sessionTokenPath)
	if err := transport.Check(nso.StageSessionToken, resp, err); err != nil {
		return "", err
	}
	var payload sessionTokenResponse
	if err := transport.Decode(nso.StageSessionToken, resp, &payload); err != nil {
		return "", err
	}
	if payload.SessionToken == "" {
		return "", &nso.MalformedResponseError{Stage: nso.StageSessionToken, Field: "session_token"}
	}
	if n.store != nil {
		if err := n.store.Set(secretstore.KeySessionToken, payload.SessionToken); err != nil {
			return "", &nso.SecretStoreError{Op: "set", Key: secretstore.KeySessionToken, Err: err}
		}
	}
	n.advance(PhaseSessionTokenObtained)
	n.log.Infow("Obtained session token", "token", transport.MaskToken(payload.SessionToken))
	return payload.SessionToken, nil
}

// ServiceToken trades a session token for a short-lived service token bundle.
// It can be called without going through Authorize first.
func (n *Negotiator) ServiceToken(ctx context.Context, sessionToken string) (*ServiceToken, error) {
	if sessionToken == "" {
		return nil, errors.New("session token is required")
	}
	resp, err := n.http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"User-Agent":      coralServiceUserAgent,
			"Accept":          "application/json",
			"Accept-Language": n.cfg.Language,
		}).
		SetFormData(map[string]string{
			"client_id":     n.cfg.ClientID,
			"grant_type":    sessionTokenGrantType,
			"session_token": sessionToken,
		}).
		Post(n.oauth.Endpoint.TokenURL)
	if err := transport.Check(nso.StageServiceToken, resp, err); err != nil {
		return nil, err
	}
	var token ServiceToken
	if err := transport.Decode(nso.StageServiceToken, resp, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, &nso.MalformedResponseError{Stage: nso.StageServiceToken, Field: "access_token"}
	}
	token.Raw = json.RawMessage(resp.Body())
	n.advance(PhaseServiceTokenObtained)
	return &token, nil
}

// UserProfile fetches users/me with the service token's access token.
func (n *Negotiator) UserProfile(ctx context.Context, accessToken string) (*UserProfile, error) {
	resp, err := n.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetHeaders(map[string]string{
			"User-Agent":      coralServiceUserAgent,
			"Accept":          "application/json",
			"Accept-Language": n.cfg.Language,
		}).
		Get(n.cfg.AccountsAPIURL + userProfilePath)
	if err := transport.Check(nso.StageUserProfile, resp, err); err != nil {
		return nil, err
	}
	var profile UserProfile
	if err := transport.Decode(nso.StageUserProfile, resp, &profile); err != nil {
		return nil, err
	}
	required := []struct{ field, value string }{
		{"country", profile.Country},
		{"birthday", profile.Birthday},
		{"language", profile.Language},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, &nso.MalformedResponseError{Stage: nso.StageUserProfile, Field: r.field}
		}
	}
	profile.Raw = json.RawMessage(resp.Body())
	n.advance(PhaseProfileFetched)
	return &profile, nil
}
