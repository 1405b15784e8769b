// Package credential caches the Coral web API credential in a secret store
// and refreshes it through attestation and account login when it ages past
// TTL.
//
// Sync is the only operation that talks to the network. It installs whatever
// record the store holds before deciding whether to refresh, so a caller
// always has the most recent credential available even when a refresh fails.
// Refreshes are coalesced across Managers in the process that share a device
// GUID and a backing store.
package credential
