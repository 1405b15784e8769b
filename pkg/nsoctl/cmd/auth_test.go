package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nso-bridge/nsoctl/pkg/nso/account"
	"github.com/nso-bridge/nsoctl/pkg/secretstore"
)

func TestAuthLoginStoresSessionToken(t *testing.T) {
	env := newTestEnv(t)
	callback := "npf71b963c1b7b6d119://auth#session_state=abc&session_token_code=" + testSessionTokenCode + "&state=xyz\n"

	out, err := env.run(t, callback, "auth", "login")
	require.NoError(t, err)
	assert.Contains(t, out, env.fake.server.URL+"/connect/1.0.0/authorize?")
	assert.Contains(t, out, "Logged in. Session token stored in file storage (expires 2030-01-02T03:04:05Z)")
	assert.Equal(t, 1, env.fake.count("authorize"))
	assert.Equal(t, 1, env.fake.count("session_token"))
	assert.Equal(t, 0, env.fake.count("service_token"))

	snapshot := env.storeSnapshot(t)
	assert.Equal(t, env.fake.sessionToken, snapshot[secretstore.KeySessionToken])
}

func TestAuthLoginDropsCachedCredential(t *testing.T) {
	env := newTestEnv(t)
	env.seedSessionToken(t)
	_, err := env.run(t, "", "auth", "sync")
	require.NoError(t, err)
	require.Contains(t, env.storeSnapshot(t), secretstore.KeyLogin)

	callback := "npf71b963c1b7b6d119://auth#session_token_code=" + testSessionTokenCode + "\n"
	_, err = env.run(t, callback, "auth", "login")
	require.NoError(t, err)

	snapshot := env.storeSnapshot(t)
	assert.NotContains(t, snapshot, secretstore.KeyLogin)
	assert.NotContains(t, snapshot, secretstore.KeyAccessToken)
	assert.NotContains(t, snapshot, secretstore.KeyRefreshTime)
	assert.Contains(t, snapshot, secretstore.KeySessionToken)
}

func TestAuthLoginRejectsCallbackWithoutCode(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "npf71b963c1b7b6d119://auth#error=access_denied\n", "auth", "login")
	require.ErrorIs(t, err, account.ErrNoSessionTokenCode)
	assert.Equal(t, 0, env.fake.count("session_token"))
	assert.Empty(t, env.storeSnapshot(t))
}

func TestAuthLoginRequiresInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "auth", "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no callback url provided")
}

func TestAuthStatus(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Session token:")
	assert.Contains(t, out, "not stored")
	assert.Contains(t, out, "no cached credential")

	env.seedSessionToken(t)
	_, err = env.run(t, "", "auth", "sync")
	require.NoError(t, err)

	out, err = env.run(t, "", "auth", "status", "-o", "json")
	require.NoError(t, err)
	var status struct {
		Storage      string `json:"storage"`
		DeviceGUID   string `json:"deviceGuid"`
		SessionToken struct {
			Subject string `json:"subject"`
			Issuer  string `json:"issuer"`
		} `json:"sessionToken"`
		Credential struct {
			HasRecord bool `json:"hasRecord"`
			Fresh     bool `json:"fresh"`
		} `json:"credential"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, secretstore.BackendFile, status.Storage)
	assert.Equal(t, testDeviceGUID, status.DeviceGUID)
	assert.Equal(t, "user-1", status.SessionToken.Subject)
	assert.Equal(t, "https://accounts.nintendo.com", status.SessionToken.Issuer)
	assert.True(t, status.Credential.HasRecord)
	assert.True(t, status.Credential.Fresh)
	assert.Equal(t, 1, env.fake.count("attestation"), "status must not refresh")
}

func TestAuthSync(t *testing.T) {
	env := newTestEnv(t)
	env.seedSessionToken(t)

	out, err := env.run(t, "", "auth", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Refreshed web API credential: fresh")
	assert.Equal(t, 1, env.fake.count("service_token"))
	assert.Equal(t, 1, env.fake.count("user_profile"))
	assert.Equal(t, 1, env.fake.count("attestation"))
	assert.Equal(t, 1, env.fake.count("account_login"))

	snapshot := env.storeSnapshot(t)
	assert.Equal(t, testWebToken, snapshot[secretstore.KeyAccessToken])
	assert.NotEmpty(t, snapshot[secretstore.KeyRefreshTime])
	assert.NotEmpty(t, snapshot[secretstore.KeyLogin])

	out, err = env.run(t, "", "auth", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Using cached web API credential: fresh")
	assert.Equal(t, 1, env.fake.count("service_token"))
	assert.Equal(t, 1, env.fake.count("attestation"))

	out, err = env.run(t, "", "auth", "sync", "--force", "-o", "json")
	require.NoError(t, err)
	var result struct {
		Refreshed bool `json:"refreshed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Refreshed)
	assert.Equal(t, 2, env.fake.count("attestation"))
	assert.Equal(t, 2, env.fake.count("account_login"))
}

func TestAuthSyncWithoutSessionToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "auth", "sync")
	require.ErrorIs(t, err, account.ErrNotAuthenticated)
	assert.Equal(t, 0, env.fake.count("attestation"))
	assert.Empty(t, env.storeSnapshot(t))
}

func TestAuthSyncSessionTokenFlag(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "auth", "sync", "--session-token", env.fake.sessionToken)
	require.NoError(t, err)
	assert.Equal(t, 1, env.fake.count("service_token"))
	assert.NotContains(t, env.storeSnapshot(t), secretstore.KeySessionToken)
}

func TestAuthLogout(t *testing.T) {
	env := newTestEnv(t)
	env.seedSessionToken(t)
	_, err := env.run(t, "", "auth", "sync")
	require.NoError(t, err)
	require.NotEmpty(t, env.storeSnapshot(t))

	out, err := env.run(t, "", "auth", "logout")
	require.NoError(t, err)
	assert.Equal(t, "Logged out\n", out)
	assert.Empty(t, env.storeSnapshot(t))
}
