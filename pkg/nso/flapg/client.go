// Package flapg talks to the flapg attestation service, which turns an
// account access token into the signed proof bundle the Coral login endpoint
// demands.
package flapg

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/nso-bridge/nsoctl/pkg/metrics"
	"github.com/nso-bridge/nsoctl/pkg/nso"
	"github.com/nso-bridge/nsoctl/pkg/nso/transport"
)

const (
	DefaultEndpoint = "https://flapg.com/ika2/api/login?public"
	// DefaultIID selects the Nintendo Switch Online app flavour of the proof.
	DefaultIID = "nso"
	apiVersion = "3"
)

// ProofBundle is single-use: it is bound to the (token, timestamp, guid)
// triple it was requested for.
type ProofBundle struct {
	F  string `json:"f"`
	P1 string `json:"p1"`
	P2 string `json:"p2"`
	P3 string `json:"p3"`
}

type attestResponse struct {
	Result *ProofBundle `json:"result"`
}

// Client is stateless and safe for concurrent use.
type Client struct {
	http     *resty.Client
	endpoint string
	iid      string
	log      *zap.SugaredLogger
}

type Option func(*Client) error

func New(httpClient *resty.Client, opts ...Option) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("http client is required")
	}
	c := &Client{
		http:     httpClient,
		endpoint: DefaultEndpoint,
		iid:      DefaultIID,
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func WithEndpoint(endpoint string) Option {
	return func(c *Client) error {
		if endpoint == "" {
			return errors.New("flapg endpoint is required")
		}
		c.endpoint = endpoint
		return nil
	}
}

func WithIID(iid string) Option {
	return func(c *Client) error {
		c.iid = iid
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		if log != nil {
			c.log = log
		}
		return nil
	}
}

// Attest requests a proof bundle for accessToken at timestamp (epoch seconds)
// on behalf of deviceGUID.
func (c *Client) Attest(ctx context.Context, accessToken string, timestamp int64, deviceGUID string) (*ProofBundle, error) {
	c.log.Debugw("Requesting attestation", "token", transport.MaskToken(accessToken), "timestamp", timestamp, "guid", deviceGUID)
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"x-token": accessToken,
			"x-time":  strconv.FormatInt(timestamp, 10),
			"x-guid":  deviceGUID,
			"x-iid":   c.iid,
			"x-ver":   apiVersion,
		}).
		Get(c.endpoint)
	if err := transport.Check(nso.StageAttestation, resp, err); err != nil {
		metrics.AttestationRequests.WithLabelValues("failed").Inc()
		return nil, err
	}
	var payload attestResponse
	if err := transport.Decode(nso.StageAttestation, resp, &payload); err != nil {
		metrics.AttestationRequests.WithLabelValues("failed").Inc()
		return nil, err
	}
	if payload.Result == nil || payload.Result.F == "" {
		metrics.AttestationRequests.WithLabelValues("failed").Inc()
		return nil, &nso.MalformedResponseError{Stage: nso.StageAttestation, Field: "result.f"}
	}
	metrics.AttestationRequests.WithLabelValues("success").Inc()
	return payload.Result, nil
}
