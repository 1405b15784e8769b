// Package secretstore persists the pipeline's secrets (session token, cached
// web credential and its refresh time) behind a small key/value interface with
// keychain, file and in-memory backends.
package secretstore

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("secret not found")

// DefaultService is the keychain service / bucket every key lives under.
const DefaultService = "nso-bridge"

const (
	// KeyLogin holds the base64 encoded cached login record.
	KeyLogin = "login"
	// KeyAccessToken holds a plaintext copy of the cached bearer credential.
	KeyAccessToken = "wasc_access_token"
	// KeyRefreshTime holds the plaintext epoch seconds of the last refresh.
	KeyRefreshTime = "wasc_time"
	// KeySessionToken holds the long-lived session token.
	KeySessionToken = "session_token"
)

// AllKeys lists every key the pipeline writes.
var AllKeys = []string{KeyLogin, KeyAccessToken, KeyRefreshTime, KeySessionToken}

const (
	BackendKeyring = "keyring"
	BackendFile    = "file"
	BackendMemory  = "memory"
)

type Entry struct {
	Key   string
	Value string
}

type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	// Delete removes key; deleting a missing key is not an error.
	Delete(key string) error
	// SetMany writes entries as one unit where the backend supports
	// transactions, otherwise sequentially in the given order.
	SetMany(entries ...Entry) error
}

// Open returns the backend named by kind. path is only used by the file
// backend.
func Open(kind, service, path string) (Store, error) {
	if service == "" {
		service = DefaultService
	}
	switch kind {
	case "", BackendKeyring:
		return NewKeyring(service), nil
	case BackendFile:
		if path == "" {
			return nil, errors.New("file token storage requires a path")
		}
		return OpenBolt(path, service)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported token storage: %s", kind)
	}
}

// Identity names the storage behind s. Two Store values with the same
// identity read and write the same secrets. Backends without an ID method are
// identified by their own instance.
func Identity(s Store) string {
	if id, ok := s.(interface{ ID() string }); ok {
		return id.ID()
	}
	return fmt.Sprintf("%T@%p", s, s)
}

// Close releases backends that hold resources.
func Close(s Store) error {
	if closer, ok := s.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// DeleteAll removes every pipeline key.
func DeleteAll(s Store) error {
	for _, key := range AllKeys {
		if err := s.Delete(key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}
