package secretstore

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// Keyring stores secrets in the OS keychain (Secret Service, macOS Keychain,
// Windows Credential Manager). Writes are not transactional.
type Keyring struct {
	service string
}

var _ Store = (*Keyring)(nil)

func NewKeyring(service string) *Keyring {
	return &Keyring{service: service}
}

// ID is shared by every Keyring of the same service.
func (k *Keyring) ID() string {
	return "keyring:" + k.service
}

func (k *Keyring) Get(key string) (string, error) {
	value, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return value, err
}

func (k *Keyring) Set(key, value string) error {
	return keyring.Set(k.service, key, value)
}

func (k *Keyring) Delete(key string) error {
	err := keyring.Delete(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func (k *Keyring) SetMany(entries ...Entry) error {
	for _, e := range entries {
		if err := k.Set(e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}
