package credential

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"

	"github.com/nso-bridge/nsoctl/pkg/metrics"
	"github.com/nso-bridge/nsoctl/pkg/nso"
	"github.com/nso-bridge/nsoctl/pkg/nso/account"
	"github.com/nso-bridge/nsoctl/pkg/nso/coral"
	"github.com/nso-bridge/nsoctl/pkg/nso/flapg"
	"github.com/nso-bridge/nsoctl/pkg/nso/transport"
	"github.com/nso-bridge/nsoctl/pkg/secretstore"
)

var (
	// ErrNoAccessToken is returned when a refresh is needed but the manager
	// was built without a service access token.
	ErrNoAccessToken = errors.New("no service access token available for refresh")
	// ErrNoProfile is returned when a refresh is needed but no user profile
	// was configured or resolved.
	ErrNoProfile = errors.New("no user profile available for refresh")
)

// Syncs are keyed by store identity and device GUID. Managers sharing both
// share one in-flight refresh; a Manager on another store refreshes and
// persists on its own.
var syncGroup singleflight.Group

type Attester interface {
	Attest(ctx context.Context, accessToken string, timestamp int64, deviceGUID string) (*flapg.ProofBundle, error)
}

type AccountLogin interface {
	Login(ctx context.Context, param coral.LoginParameter) (*coral.AccountLoginResult, error)
}

type Config struct {
	Store    secretstore.Store
	Attester Attester
	Login    AccountLogin
	// AccessToken is the service token access token attestation is bound to.
	AccessToken string
	Profile     *account.UserProfile
	// Session is consulted on the first refresh when AccessToken is empty,
	// so a fresh cached credential needs no account round trips. It is
	// consulted again once the service token it returned has expired.
	Session    SessionFunc
	DeviceGUID string
}

// SessionFunc obtains a service token and profile, typically through
// (*account.Negotiator).Bootstrap.
type SessionFunc func(ctx context.Context) (*account.Session, error)

type Manager struct {
	store      secretstore.Store
	attester   Attester
	login      AccountLogin
	deviceGUID string
	syncKey    string
	clock      clock.PassiveClock
	log        *zap.SugaredLogger

	sessionMu   sync.Mutex
	session     SessionFunc
	accessToken string
	// serviceToken is set when the access token came from session.
	serviceToken *oauth2.Token
	profile      *account.UserProfile

	mu     sync.RWMutex
	record *Record
}

type Option func(*Manager)

func WithClock(c clock.PassiveClock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

func New(cfg Config, opts ...Option) (*Manager, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("secret store is required")
	case cfg.Attester == nil:
		return nil, errors.New("attester is required")
	case cfg.Login == nil:
		return nil, errors.New("account login client is required")
	case cfg.DeviceGUID == "":
		return nil, errors.New("device guid is required")
	}
	m := &Manager{
		store:       cfg.Store,
		attester:    cfg.Attester,
		login:       cfg.Login,
		accessToken: cfg.AccessToken,
		profile:     cfg.Profile,
		session:     cfg.Session,
		deviceGUID:  cfg.DeviceGUID,
		syncKey:     secretstore.Identity(cfg.Store) + "/" + cfg.DeviceGUID,
		clock:       clock.RealClock{},
		log:         zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type syncOutcome struct {
	record    *Record
	refreshed bool
	age       time.Duration
}

// Sync makes sure a usable credential is installed, refreshing it when the
// stored one is older than TTL. A failed refresh returns *nso.RefreshError,
// leaves the store untouched and keeps the previously stored credential
// installed. When only persisting fails, the new credential is installed and
// the error is still returned. Concurrent callers for the same device and
// store share the leader's result, including its context.
func (m *Manager) Sync(ctx context.Context) error {
	v, err, shared := syncGroup.Do(m.syncKey, func() (any, error) {
		return m.sync(ctx)
	})
	outcome, _ := v.(*syncOutcome)
	if outcome != nil && outcome.record != nil {
		m.install(outcome.record)
	}
	if err != nil {
		metrics.CredentialSyncs.WithLabelValues("failed").Inc()
		return err
	}
	if outcome.refreshed {
		metrics.CredentialSyncs.WithLabelValues("refreshed").Inc()
		metrics.CredentialAge.Set(0)
	} else {
		metrics.CredentialSyncs.WithLabelValues("cached").Inc()
		metrics.CredentialAge.Set(outcome.age.Seconds())
	}
	m.log.Debugw("Credential synced", "refreshed", outcome.refreshed, "age", outcome.age, "shared", shared)
	return nil
}

func (m *Manager) sync(ctx context.Context) (*syncOutcome, error) {
	stored, err := m.load()
	if err != nil {
		return nil, err
	}
	outcome := &syncOutcome{record: stored}
	if stored != nil {
		m.install(stored)
		outcome.age = m.clock.Since(stored.ObtainedAt())
		if outcome.age < TTL {
			return outcome, nil
		}
	}

	m.log.Infow("Refreshing web API credential", "guid", m.deviceGUID, "age", outcome.age)
	fresh, err := m.refresh(ctx)
	if err != nil {
		m.log.Warnw("Credential refresh failed", "error", err)
		return outcome, &nso.RefreshError{Err: err}
	}
	outcome.record = fresh
	outcome.refreshed = true
	outcome.age = 0
	if err := m.persist(fresh); err != nil {
		return outcome, &nso.RefreshError{Err: err}
	}
	m.log.Infow("Web API credential refreshed", "token", transport.MaskToken(fresh.AccessToken()))
	return outcome, nil
}

// load returns the stored record, or nil when there is none or it cannot be
// decoded. The record's time is the last refresh: it wins over a timestamp
// that disagrees with it, and a missing timestamp resets it to zero so the
// record counts as never refreshed.
func (m *Manager) load() (*Record, error) {
	encoded, err := m.get(secretstore.KeyLogin)
	if err != nil {
		return nil, err
	}
	rawTime, err := m.get(secretstore.KeyRefreshTime)
	if err != nil {
		return nil, err
	}
	if encoded == "" {
		return nil, nil
	}
	rec, err := DecodeRecord(encoded)
	if err != nil {
		m.log.Warnw("Ignoring unreadable login record", "error", err)
		return nil, nil
	}
	if rec.AccessToken() == "" {
		m.log.Warnw("Ignoring login record without access token")
		return nil, nil
	}
	switch timestamp := parseEpoch(rawTime); {
	case rawTime == "":
		rec.Time = 0
	case timestamp != rec.Time:
		m.log.Debugw("Refresh timestamp disagrees with login record", "timestamp", timestamp, "record", rec.Time)
	}
	return rec, nil
}

func (m *Manager) get(key string) (string, error) {
	value, err := m.store.Get(key)
	if errors.Is(err, secretstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", &nso.SecretStoreError{Op: "get", Key: key, Err: err}
	}
	return value, nil
}

// sessionCredentials returns the access token and profile a refresh needs,
// resolving them through the SessionFunc when there is no access token yet or
// the service token it returned has expired.
func (m *Manager) sessionCredentials(ctx context.Context) (string, *account.UserProfile, error) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	if m.session != nil && (m.accessToken == "" || m.serviceTokenExpired()) {
		session, err := m.session(ctx)
		if err != nil {
			return "", nil, err
		}
		m.accessToken, m.serviceToken = "", nil
		if session.ServiceToken != nil {
			m.serviceToken = session.ServiceToken.OAuth2Token(m.clock.Now())
			m.accessToken = m.serviceToken.AccessToken
		}
		m.profile = session.Profile
	}
	if m.accessToken == "" {
		return "", nil, ErrNoAccessToken
	}
	if m.profile == nil {
		return "", nil, ErrNoProfile
	}
	return m.accessToken, m.profile, nil
}

func (m *Manager) serviceTokenExpired() bool {
	if m.serviceToken == nil || m.serviceToken.Expiry.IsZero() {
		return false
	}
	return !m.clock.Now().Before(m.serviceToken.Expiry)
}

func (m *Manager) refresh(ctx context.Context) (*Record, error) {
	accessToken, profile, err := m.sessionCredentials(ctx)
	if err != nil {
		return nil, err
	}
	now := m.clock.Now().Unix()
	proof, err := m.attester.Attest(ctx, accessToken, now, m.deviceGUID)
	if err != nil {
		return nil, err
	}
	login, err := m.login.Login(ctx, coral.LoginParameter{
		F:          proof.F,
		NAIDToken:  proof.P1,
		Timestamp:  proof.P2,
		RequestID:  proof.P3,
		NACountry:  profile.Country,
		NABirthday: profile.Birthday,
		Language:   profile.Language,
	})
	if err != nil {
		return nil, err
	}
	return &Record{Login: login, Time: now}, nil
}

// persist writes the timestamp, the plaintext token and the record, in that
// order.
func (m *Manager) persist(rec *Record) error {
	encoded, err := rec.Encode()
	if err != nil {
		return err
	}
	err = m.store.SetMany(
		secretstore.Entry{Key: secretstore.KeyRefreshTime, Value: strconv.FormatInt(rec.Time, 10)},
		secretstore.Entry{Key: secretstore.KeyAccessToken, Value: rec.AccessToken()},
		secretstore.Entry{Key: secretstore.KeyLogin, Value: encoded},
	)
	if err != nil {
		return &nso.SecretStoreError{Op: "set", Key: secretstore.KeyLogin, Err: err}
	}
	return nil
}

func (m *Manager) install(rec *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = rec
}

// AccessToken returns the installed bearer credential, or "".
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.record.AccessToken()
}

// Header returns the installed Authorization header value, or "".
func (m *Manager) Header() string {
	token := m.AccessToken()
	if token == "" {
		return ""
	}
	return "Bearer " + token
}

// Invalidate drops the installed credential and deletes the cached record
// and its plaintext copies. The session token is kept.
func (m *Manager) Invalidate() error {
	m.install(nil)
	for _, key := range []string{secretstore.KeyLogin, secretstore.KeyAccessToken, secretstore.KeyRefreshTime} {
		if err := m.store.Delete(key); err != nil {
			return &nso.SecretStoreError{Op: "delete", Key: key, Err: err}
		}
	}
	m.log.Debugw("Cached credential invalidated", "guid", m.deviceGUID)
	return nil
}

type Status struct {
	HasRecord  bool          `json:"hasRecord" yaml:"hasRecord"`
	ObtainedAt time.Time     `json:"obtainedAt,omitempty" yaml:"obtainedAt,omitempty"`
	Age        time.Duration `json:"age" yaml:"age"`
	Fresh      bool          `json:"fresh" yaml:"fresh"`
}

// Status reports on the stored record without refreshing or installing it.
func (m *Manager) Status() (Status, error) {
	rec, err := m.load()
	if err != nil {
		return Status{}, err
	}
	if rec == nil {
		return Status{}, nil
	}
	age := m.clock.Since(rec.ObtainedAt())
	return Status{HasRecord: true, ObtainedAt: rec.ObtainedAt(), Age: age, Fresh: age < TTL}, nil
}

func (s Status) String() string {
	if !s.HasRecord {
		return "no cached credential"
	}
	state := "stale"
	if s.Fresh {
		state = "fresh"
	}
	return fmt.Sprintf("%s (obtained %s, age %s)", state, s.ObtainedAt.UTC().Format(time.RFC3339), s.Age.Truncate(time.Second))
}

// parseEpoch accepts integral or fractional epoch seconds. Anything else
// counts as never refreshed.
func parseEpoch(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return int64(v)
	}
	return 0
}
