// Package account negotiates a Nintendo account session: PKCE authorization,
// session token, service token and user profile.
package account
