package account

import "github.com/google/uuid"

// NewDeviceGUID returns a fresh device identity. Attestation proofs are bound
// to it, so it should be generated once and kept in configuration.
func NewDeviceGUID() string {
	return uuid.NewString()
}
