package google

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestReadToken(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		access  string
		refresh string
		wantErr bool
	}{
		{"legacy format", "access-1 refresh-1\n", "access-1", "refresh-1", false},
		{"json format", `{"access_token":"a","refresh_token":"r","token_type":"Bearer"}`, "a", "r", false},
		{"json without tokens", `{"token_type":"Bearer"}`, "", "", true},
		{"broken json", `{"access_token":`, "", "", true},
		{"single field", "only-one", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "token", tt.content)
			tok, err := ReadToken(path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.access, tok.AccessToken)
			assert.Equal(t, tt.refresh, tok.RefreshToken)
		})
	}

	_, err := ReadToken(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, ErrNoToken)
}

func TestFileTokenProvider(t *testing.T) {
	dir := t.TempDir()
	tokenFile := writeFile(t, dir, "token.json", `{"access_token":"abc","token_type":"Bearer"}`)

	p := NewFileTokenProvider(tokenFile, filepath.Join(dir, "no-credentials.json"))
	assert.True(t, p.HasToken())

	ts, err := p.TokenSource(context.Background())
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)

	creds := writeFile(t, dir, "credentials.json", `{"installed":{"client_id":"id","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`)
	p = NewFileTokenProvider(tokenFile, creds)
	_, err = p.TokenSource(context.Background())
	require.NoError(t, err)

	missing := NewFileTokenProvider(filepath.Join(dir, "nope"), creds)
	assert.False(t, missing.HasToken())
	_, err = missing.TokenSource(context.Background())
	require.ErrorIs(t, err, ErrNoToken)

	refreshOnly := writeFile(t, dir, "refresh.json", `{"refresh_token":"r"}`)
	_, err = NewFileTokenProvider(refreshOnly, filepath.Join(dir, "none.json")).TokenSource(context.Background())
	require.Error(t, err)
}

func TestLoadOAuthConfig(t *testing.T) {
	dir := t.TempDir()
	creds := writeFile(t, dir, "credentials.json", `{"web":{"client_id":"id","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`)

	conf, err := LoadOAuthConfig(creds)
	require.NoError(t, err)
	assert.Equal(t, "id", conf.ClientID)
	assert.Equal(t, ReadOnlyScopes, conf.Scopes)

	bad := writeFile(t, dir, "bad.json", `{}`)
	_, err = LoadOAuthConfig(bad)
	require.Error(t, err)
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("XDG_CACHE_HOME", "")
	assert.Equal(t, "inboxcal", filepath.Base(filepath.Dir(DefaultTokenFile())))
	assert.Equal(t, "credentials.json", filepath.Base(DefaultCredentialsFile()))
}
