// Package google loads the OAuth2 token used for read-only Gmail access.
//
// Tokens are obtained out of band and stored on disk, either as the JSON
// form of oauth2.Token or in the legacy "access refresh" two-field format.
// When a client credentials file is present the token is refreshed
// automatically; without one it is used as-is until it expires.
package google
