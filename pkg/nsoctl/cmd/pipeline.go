package cmd

import (
	"context"
	"errors"

	"github.com/go-resty/resty/v2"

	"github.com/nso-bridge/nsoctl/pkg/nso/account"
	"github.com/nso-bridge/nsoctl/pkg/nso/coral"
	"github.com/nso-bridge/nsoctl/pkg/nso/credential"
	"github.com/nso-bridge/nsoctl/pkg/nso/flapg"
	"github.com/nso-bridge/nsoctl/pkg/nso/transport"
	"github.com/nso-bridge/nsoctl/pkg/nsoctl/config"
	"github.com/nso-bridge/nsoctl/pkg/secretstore"
	"github.com/nso-bridge/nsoctl/pkg/version"
)

var errNoDeviceGUID = errors.New("account.device-guid is not set; run 'nsoctl config init' or 'nsoctl config set account.device-guid <uuid>'")

// pipeline is every client one invocation needs, wired to a single HTTP
// client and secret store.
type pipeline struct {
	cfg        config.Config
	http       *resty.Client
	store      secretstore.Store
	negotiator *account.Negotiator
	manager    *credential.Manager
	coral      *coral.Client
}

func (rt *runtimeState) effectiveConfig() (config.Config, error) {
	cfg := config.DefaultConfig()
	if rt.cfg != nil {
		cfg = rt.cfg.WithDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (rt *runtimeState) newPipeline() (*pipeline, error) {
	cfg, err := rt.effectiveConfig()
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	httpClient, err := transport.New(transport.Options{
		CAFile:          cfg.Endpoints.CAFile,
		InsecureSkipTLS: cfg.Endpoints.InsecureSkipTLSVerify,
		Timeout:         timeout,
		UserAgent:       version.UserAgent(),
		Logger:          rt.Logger(),
		Debug:           rt.verbose,
	})
	if err != nil {
		return nil, err
	}
	store, err := rt.Store()
	if err != nil {
		return nil, err
	}
	negotiator, err := account.New(httpClient, account.Config{
		ClientID:       cfg.Account.ClientID,
		AccountsURL:    cfg.Endpoints.Accounts,
		AccountsAPIURL: cfg.Endpoints.AccountsAPI,
		ClientVersion:  cfg.Account.ClientVersion,
		Language:       cfg.Account.Language,
	}, account.WithStore(store), account.WithLogger(rt.Logger()))
	if err != nil {
		return nil, err
	}
	coralClient, err := coral.New(httpClient, coral.Config{
		BaseURL:    cfg.Endpoints.Coral,
		AppVersion: cfg.Account.AppVersion,
		Language:   cfg.Account.Language,
	}, rt.Logger())
	if err != nil {
		return nil, err
	}
	return &pipeline{
		cfg:        cfg,
		http:       httpClient,
		store:      store,
		negotiator: negotiator,
		coral:      coralClient,
	}, nil
}

// credentials builds the cache manager. The account stages only run when a
// refresh needs them.
func (p *pipeline) credentials(rt *runtimeState) (*credential.Manager, error) {
	if p.manager != nil {
		return p.manager, nil
	}
	if p.cfg.Account.DeviceGUID == "" {
		return nil, errNoDeviceGUID
	}
	attester, err := flapg.New(p.http, flapg.WithEndpoint(p.cfg.Endpoints.Flapg), flapg.WithLogger(rt.Logger()))
	if err != nil {
		return nil, err
	}
	sessionToken := rt.sessionToken
	manager, err := credential.New(credential.Config{
		Store:    p.store,
		Attester: attester,
		Login:    p.coral,
		Session: func(ctx context.Context) (*account.Session, error) {
			return p.negotiator.Bootstrap(ctx, sessionToken, nil)
		},
		DeviceGUID: p.cfg.Account.DeviceGUID,
	}, credential.WithLogger(rt.Logger()))
	if err != nil {
		return nil, err
	}
	p.manager = manager
	return manager, nil
}

// service returns the Coral service client backed by the cache manager.
func (p *pipeline) service(rt *runtimeState) (*coral.Service, *credential.Manager, error) {
	manager, err := p.credentials(rt)
	if err != nil {
		return nil, nil, err
	}
	return p.coral.Service(manager), manager, nil
}
