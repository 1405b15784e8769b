package flapg

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nso-bridge/nsoctl/pkg/nso"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := New(resty.New(), WithEndpoint(server.URL+"/ika2/api/login?public"))
	require.NoError(t, err)
	return c
}

func TestAttestSendsHeadersAndDecodesProof(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/ika2/api/login", r.URL.Path)
		assert.Equal(t, "access-token", r.Header.Get("x-token"))
		assert.Equal(t, "1700000000", r.Header.Get("x-time"))
		assert.Equal(t, "guid-1", r.Header.Get("x-guid"))
		assert.Equal(t, DefaultIID, r.Header.Get("x-iid"))
		assert.Equal(t, "3", r.Header.Get("x-ver"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]string{"f": "f-val", "p1": "id-token", "p2": "1700000000", "p3": "request-id"},
		})
	})

	proof, err := c.Attest(context.Background(), "access-token", 1700000000, "guid-1")
	require.NoError(t, err)
	assert.Equal(t, &ProofBundle{F: "f-val", P1: "id-token", P2: "1700000000", P3: "request-id"}, proof)
}

func TestAttestNonOK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Attest(context.Background(), "token", 1, "guid")
	var statusErr *nso.UpstreamStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, nso.StageAttestation, statusErr.Stage)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestAttestMissingResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	})

	_, err := c.Attest(context.Background(), "token", 1, "guid")
	var malformed *nso.MalformedResponseError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "result.f", malformed.Field)
}

func TestAttestConcurrentCallsAreIndependent(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]string{"f": "f-" + r.Header.Get("x-guid"), "p1": "a", "p2": "b", "p3": "c"},
		})
	})

	var wg sync.WaitGroup
	for _, guid := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(guid string) {
			defer wg.Done()
			proof, err := c.Attest(context.Background(), "token", 1, guid)
			assert.NoError(t, err)
			if proof != nil {
				assert.Equal(t, "f-"+guid, proof.F)
			}
		}(guid)
	}
	wg.Wait()
	assert.Equal(t, int32(4), calls.Load())
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	_, err = New(resty.New(), WithEndpoint(""))
	require.Error(t, err)

	c, err := New(resty.New(), WithIID("app"), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, "app", c.iid)
	assert.Equal(t, DefaultEndpoint, c.endpoint)
}
