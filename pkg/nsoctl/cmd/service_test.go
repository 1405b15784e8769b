package cmd

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nso-bridge/nsoctl/pkg/nso"
	"github.com/nso-bridge/nsoctl/pkg/nso/coral"
	"github.com/nso-bridge/nsoctl/pkg/nsoctl/config"
	"github.com/nso-bridge/nsoctl/pkg/secretstore"
)

func TestFriendsRefreshesOnceThenUsesCache(t *testing.T) {
	env := newTestEnv(t)
	env.seedSessionToken(t)

	out, err := env.run(t, "", "friends", "-o", "json")
	require.NoError(t, err)
	var friends []coral.Friend
	require.NoError(t, json.Unmarshal([]byte(out), &friends))
	require.Len(t, friends, 3)
	assert.Equal(t, "Zelda", friends[0].Name)
	assert.Equal(t, "Splatoon 3", friends[0].Presence.Game.Name)
	for _, stage := range []string{"service_token", "user_profile", "attestation", "account_login", "friend_list"} {
		assert.Equal(t, 1, env.fake.count(stage), stage)
	}

	out, err = env.run(t, "", "friends")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Sidon")
	assert.Equal(t, 2, env.fake.count("friend_list"))
	for _, stage := range []string{"service_token", "user_profile", "attestation", "account_login"} {
		assert.Equal(t, 1, env.fake.count(stage), stage)
	}
}

func TestFriendsFilters(t *testing.T) {
	env := newTestEnv(t)
	env.seedSessionToken(t)

	tests := []struct {
		name  string
		args  []string
		names []string
	}{
		{name: "online", args: []string{"--online"}, names: []string{"Zelda", "Sidon"}},
		{name: "favorites", args: []string{"--favorites"}, names: []string{"Zelda", "Impa"}},
		{name: "both", args: []string{"--online", "--favorites"}, names: []string{"Zelda"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"friends", "-o", "json"}, tt.args...)
			out, err := env.run(t, "", args...)
			require.NoError(t, err)
			var friends []coral.Friend
			require.NoError(t, json.Unmarshal([]byte(out), &friends))
			names := make([]string, 0, len(friends))
			for _, f := range friends {
				names = append(names, f.Name)
			}
			assert.Equal(t, tt.names, names)
		})
	}
}

func TestFriendsRaw(t *testing.T) {
	env := newTestEnv(t)
	env.seedSessionToken(t)

	out, err := env.run(t, "", "friends", "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, `"nsaId":"impa-nsa"`)
	assert.Contains(t, out, `"status":0`)
}

func TestFriendsUnauthorizedDropsCredential(t *testing.T) {
	env := newTestEnv(t)
	env.seedSessionToken(t)
	_, err := env.run(t, "", "friends")
	require.NoError(t, err)

	env.fake.friendsStatus.Store(http.StatusUnauthorized)
	_, err = env.run(t, "", "friends")
	require.Error(t, err)
	assert.True(t, nso.IsUnauthorized(err))
	assert.Contains(t, err.Error(), "has been dropped")

	snapshot := env.storeSnapshot(t)
	assert.NotContains(t, snapshot, secretstore.KeyLogin)
	assert.Contains(t, snapshot, secretstore.KeySessionToken)

	env.fake.friendsStatus.Store(http.StatusOK)
	_, err = env.run(t, "", "friends")
	require.NoError(t, err)
	assert.Equal(t, 2, env.fake.count("account_login"))
}

func TestSelfTemplate(t *testing.T) {
	env := newTestEnv(t)
	env.seedSessionToken(t)

	out, err := env.run(t, "", "self", "-o", "template={{ .name }} {{ .presence.state | lower }}")
	require.NoError(t, err)
	assert.Equal(t, "Link online\n", out)
}

func TestSelfTable(t *testing.T) {
	env := newTestEnv(t)
	env.seedSessionToken(t)

	out, err := env.run(t, "", "self")
	require.NoError(t, err)
	assert.Contains(t, out, "Link")
	assert.Contains(t, out, "self-nsa")
	assert.Equal(t, 1, env.fake.count("show_self"))
}

func TestServiceRequiresDeviceGUID(t *testing.T) {
	env := newTestEnv(t)
	cfg, err := config.Load(env.configPath)
	require.NoError(t, err)
	cfg.Account.DeviceGUID = ""
	require.NoError(t, config.Save(env.configPath, cfg))

	_, err = env.run(t, "", "friends")
	require.ErrorIs(t, err, errNoDeviceGUID)
}

func TestServiceWritesMetricsFile(t *testing.T) {
	env := newTestEnv(t)
	env.seedSessionToken(t)
	path := filepath.Join(t.TempDir(), "nsoctl.prom")

	_, err := env.run(t, "", "--metrics-file", path, "friends")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "nsoctl_credential_sync_total")
	assert.Contains(t, string(data), `stage="friend_list"`)
}

func TestServiceMetricsFileWrittenOnFailure(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "nsoctl.prom")

	_, err := env.run(t, "", "--metrics-file", path, "friends")
	require.Error(t, err)
	assert.FileExists(t, path)
}

func TestFilterFriends(t *testing.T) {
	friends := []coral.Friend{
		{Name: "a", Presence: coral.Presence{State: "ONLINE"}},
		{Name: "b", Presence: coral.Presence{State: "offline"}, IsFavoriteFriend: true},
		{Name: "c"},
		{Name: "d", Presence: coral.Presence{State: "PLAYING"}, IsFavoriteFriend: true},
	}

	assert.Len(t, filterFriends(friends, false, false), 4)
	assert.Equal(t, []coral.Friend{friends[0], friends[3]}, filterFriends(friends, true, false))
	assert.Equal(t, []coral.Friend{friends[1], friends[3]}, filterFriends(friends, false, true))
	assert.Equal(t, []coral.Friend{friends[3]}, filterFriends(friends, true, true))
}
