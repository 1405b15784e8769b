// Package coral is the client for the Nintendo Switch Online app API
// (api-lp1.znc.srv.nintendo.net): the account login that mints the web API
// credential, and the service calls that present it.
package coral

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/nso-bridge/nsoctl/pkg/nso"
	"github.com/nso-bridge/nsoctl/pkg/nso/transport"
)

const (
	DefaultBaseURL    = "https://api-lp1.znc.srv.nintendo.net"
	DefaultAppVersion = "2.1.1"
	DefaultLanguage   = "en-US"

	loginPath      = "/v3/Account/Login"
	showSelfPath   = "/v3/User/ShowSelf"
	friendListPath = "/v3/Friend/List"

	serviceUserAgent = "Coral/2.0.0 (com.nintendo.znca; build:1489; iOS 15.3.1) Alamofire/5.4.4"
	jsonContentType  = "application/json; charset=utf-8"
)

type Config struct {
	BaseURL string
	// AppVersion is the NSO app version sent as X-ProductVersion.
	AppVersion string
	Language   string
}

type Client struct {
	http *resty.Client
	cfg  Config
	log  *zap.SugaredLogger
}

func New(httpClient *resty.Client, cfg Config, log *zap.SugaredLogger) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("http client is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AppVersion == "" {
		cfg.AppVersion = DefaultAppVersion
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{http: httpClient, cfg: cfg, log: log}, nil
}

// Login submits a proof bundle and profile fields and returns the account
// login result. A 200 without a web API server credential is malformed.
func (c *Client) Login(ctx context.Context, param LoginParameter) (*AccountLoginResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Accept-Language":  c.cfg.Language,
			"User-Agent":       "com.nintendo.znca/" + c.cfg.AppVersion + " (Android/12.1.2)",
			"Accept":           "application/json",
			"X-ProductVersion": c.cfg.AppVersion,
			"Content-Type":     jsonContentType,
			"Authorization":    "Bearer",
			"X-Platform":       "Android",
		}).
		SetBody(loginRequest{Parameter: param}).
		Post(c.cfg.BaseURL + loginPath)
	if err := transport.Check(nso.StageAccountLogin, resp, err); err != nil {
		return nil, err
	}
	var result AccountLoginResult
	if err := transport.Decode(nso.StageAccountLogin, resp, &result); err != nil {
		return nil, err
	}
	if result.AccessToken() == "" {
		return nil, &nso.MalformedResponseError{Stage: nso.StageAccountLogin, Field: "result.webApiServerCredential.accessToken"}
	}
	c.log.Debugw("Coral account login succeeded", "correlationId", result.CorrelationID)
	return &result, nil
}

// CredentialSource provides the bearer credential for service calls. Sync is
// called before every request.
type CredentialSource interface {
	Sync(ctx context.Context) error
	AccessToken() string
}

// Service issues authenticated Coral API calls.
type Service struct {
	client *Client
	creds  CredentialSource
}

func (c *Client) Service(creds CredentialSource) *Service {
	return &Service{client: c, creds: creds}
}

func call[T any](ctx context.Context, s *Service, stage nso.Stage, path string) (*Response[T], error) {
	if err := s.creds.Sync(ctx); err != nil {
		return nil, err
	}
	token := s.creds.AccessToken()
	if token == "" {
		return nil, errors.New("no web api credential available")
	}
	cfg := s.client.cfg
	resp, err := s.client.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeaders(map[string]string{
			"X-ProductVersion": cfg.AppVersion,
			"X-Platform":       "iOS",
			"User-Agent":       serviceUserAgent,
			"Accept":           "application/json",
			"Accept-Language":  cfg.Language,
			"Content-Type":     jsonContentType,
		}).
		Post(cfg.BaseURL + path)
	if err := transport.Check(stage, resp, err); err != nil {
		return nil, err
	}
	var out Response[T]
	if err := transport.Decode(stage, resp, &out); err != nil {
		return nil, err
	}
	out.Raw = json.RawMessage(resp.Body())
	return &out, nil
}

// ShowSelf returns the account holder as Coral sees it.
func (s *Service) ShowSelf(ctx context.Context) (*Response[Self], error) {
	return call[Self](ctx, s, nso.StageShowSelf, showSelfPath)
}

func (s *Service) FriendList(ctx context.Context) (*Response[FriendList], error) {
	return call[FriendList](ctx, s, nso.StageFriendList, friendListPath)
}
