// Package nso holds the types shared by the Nintendo Switch Online credential
// pipeline: the exchange stages and the error taxonomy every stage reports
// through.
package nso

import (
	"errors"
	"fmt"
)

// Stage names one HTTP exchange of the pipeline.
type Stage string

const (
	StageAuthorize    Stage = "authorize"
	StageSessionToken Stage = "session_token"
	StageServiceToken Stage = "service_token"
	StageUserProfile  Stage = "user_profile"
	StageAttestation  Stage = "attestation"
	StageAccountLogin Stage = "account_login"
	StageShowSelf     Stage = "show_self"
	StageFriendList   Stage = "friend_list"
)

// TransportError reports that an endpoint could not be reached at all.
type TransportError struct {
	Stage Stage
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamStatusError reports a non-200 response. No error body is parsed.
type UpstreamStatusError struct {
	Stage      Stage
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Stage, e.StatusCode)
}

// MalformedResponseError reports a 200 response whose JSON could not be
// decoded or lacks a required field.
type MalformedResponseError struct {
	Stage Stage
	Field string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: malformed response: missing %s", e.Stage, e.Field)
	}
	return fmt.Sprintf("%s: malformed response: %v", e.Stage, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// SecretStoreError reports that the persistence layer failed.
type SecretStoreError struct {
	Op  string
	Key string
	Err error
}

func (e *SecretStoreError) Error() string {
	return fmt.Sprintf("secret store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *SecretStoreError) Unwrap() error { return e.Err }

// RefreshError wraps any failure of a credential refresh. The previously
// installed credential stays in place when it is returned.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("credential refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// StatusCode returns the upstream status carried anywhere in err's chain, or 0.
func StatusCode(err error) int {
	var statusErr *UpstreamStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err carries an upstream 401.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == 401
}
