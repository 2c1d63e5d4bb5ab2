package google

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/oauth2"
)

// TokenProvider supplies OAuth tokens for Google APIs.
type TokenProvider interface {
	// TokenSource returns a source for the stored token.
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)

	// HasToken reports whether a token is available.
	HasToken() bool
}

// FileTokenProvider reads the token from disk.
type FileTokenProvider struct {
	TokenFile       string
	CredentialsFile string
}

// NewFileTokenProvider returns a provider for the given files; empty
// paths fall back to the defaults.
func NewFileTokenProvider(tokenFile, credentialsFile string) *FileTokenProvider {
	if tokenFile == "" {
		tokenFile = DefaultTokenFile()
	}
	if credentialsFile == "" {
		credentialsFile = DefaultCredentialsFile()
	}
	return &FileTokenProvider{TokenFile: tokenFile, CredentialsFile: credentialsFile}
}

// HasToken reports whether the token file exists.
func (p *FileTokenProvider) HasToken() bool {
	_, err := os.Stat(p.TokenFile)
	return err == nil
}

// TokenSource returns a refreshing source when client credentials are
// available and a static one otherwise.
func (p *FileTokenProvider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := ReadToken(p.TokenFile)
	if err != nil {
		return nil, err
	}

	conf, err := LoadOAuthConfig(p.CredentialsFile)
	switch {
	case err == nil:
		return conf.TokenSource(ctx, tok), nil
	case errors.Is(err, fs.ErrNotExist):
		if tok.AccessToken == "" {
			return nil, fmt.Errorf("token in %s has no access token and no credentials file to refresh it", p.TokenFile)
		}
		return oauth2.StaticTokenSource(tok), nil
	default:
		return nil, err
	}
}
