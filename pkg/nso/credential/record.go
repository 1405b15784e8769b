package credential

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nso-bridge/nsoctl/pkg/nso/coral"
)

// TTL is how long a cached web API credential is reused before a refresh.
const TTL = 7170 * time.Second

// Record is the cached Coral login and the epoch second it was obtained.
type Record struct {
	Login *coral.AccountLoginResult `json:"login"`
	Time  int64                     `json:"time"`
}

// AccessToken returns the bearer credential held by the record.
func (r *Record) AccessToken() string {
	if r == nil {
		return ""
	}
	return r.Login.AccessToken()
}

// ObtainedAt returns the record time as a time.Time.
func (r *Record) ObtainedAt() time.Time {
	return time.Unix(r.Time, 0)
}

// Encode renders the record as JSON and base64 encodes it for the store.
func (r *Record) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal login record: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeRecord reverses Encode.
func DecodeRecord(encoded string) (*Record, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode login record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal login record: %w", err)
	}
	return &rec, nil
}
