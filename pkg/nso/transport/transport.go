// Package transport builds the HTTP client shared by every stage of the
// pipeline and maps raw responses onto the nso error taxonomy.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/nso-bridge/nsoctl/pkg/metrics"
	"github.com/nso-bridge/nsoctl/pkg/nso"
)

const DefaultTimeout = 30 * time.Second

type Options struct {
	CAFile          string
	InsecureSkipTLS bool
	Timeout         time.Duration
	UserAgent       string
	// Logger receives resty's own warnings and, with Debug, request dumps.
	Logger *zap.SugaredLogger
	Debug  bool
}

func New(opts Options) (*resty.Client, error) {
	tlsConfig, err := loadTLSConfig(opts.CAFile, opts.InsecureSkipTLS)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New().
		SetTLSClientConfig(tlsConfig).
		SetTimeout(timeout)
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Logger != nil {
		client.SetLogger(opts.Logger)
		client.SetDebug(opts.Debug)
	}
	return client, nil
}

func loadTLSConfig(caFile string, insecure bool) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: insecure}
	if caFile == "" {
		return tlsConfig, nil
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(data); !ok {
		return nil, errors.New("failed to parse CA file")
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}

// Check turns the outcome of a single exchange into a TransportError or an
// UpstreamStatusError. Only 200 counts as success.
func Check(stage nso.Stage, resp *resty.Response, err error) error {
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(string(stage), "error").Inc()
		return &nso.TransportError{Stage: stage, Err: err}
	}
	code := resp.StatusCode()
	metrics.UpstreamRequests.WithLabelValues(string(stage), strconv.Itoa(code)).Inc()
	if code != http.StatusOK {
		return &nso.UpstreamStatusError{Stage: stage, StatusCode: code}
	}
	return nil
}

// Decode unmarshals a successful response body into out.
func Decode(stage nso.Stage, resp *resty.Response, out any) error {
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &nso.MalformedResponseError{Stage: stage, Err: err}
	}
	return nil
}

// MaskToken shortens a secret for log output.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}
