package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const appDir = "inboxcal"

// ErrNoToken is returned when no token file exists.
var ErrNoToken = errors.New("no Google OAuth token found")

// DefaultTokenFile is where the token is looked up when none is configured.
func DefaultTokenFile() string {
	return filepath.Join(userCacheDir(), appDir, "google.token")
}

// DefaultCredentialsFile is where the OAuth client credentials are looked
// up when none are configured.
func DefaultCredentialsFile() string {
	return filepath.Join(homeDir(), ".config", appDir, "credentials.json")
}

// ReadToken parses a token file in JSON or legacy two-field form.
func ReadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNoToken, path)
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var tok oauth2.Token
		if err := json.Unmarshal([]byte(trimmed), &tok); err != nil {
			return nil, fmt.Errorf("invalid token file %s: %w", path, err)
		}
		if tok.AccessToken == "" && tok.RefreshToken == "" {
			return nil, fmt.Errorf("invalid token file %s: no access or refresh token", path)
		}
		return &tok, nil
	}

	f := strings.Fields(trimmed)
	if len(f) != 2 {
		return nil, fmt.Errorf("invalid token format in %s", path)
	}
	// Expiry in the past forces a refresh on first use.
	return &oauth2.Token{
		AccessToken:  f[0],
		TokenType:    "Bearer",
		RefreshToken: f[1],
		Expiry:       time.Unix(1, 0),
	}, nil
}

// LoadOAuthConfig reads client credentials downloaded from the Google
// Cloud console.
func LoadOAuthConfig(path string, scopes ...string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	if len(scopes) == 0 {
		scopes = ReadOnlyScopes
	}
	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials file %s: %w", path, err)
	}
	return conf, nil
}

// NewHTTPClient returns an HTTP client authorized by provider. The client
// is forced onto HTTP/1.1 to avoid HTTP/2 stream errors from the Gmail API.
func NewHTTPClient(ctx context.Context, provider TokenProvider) (*http.Client, error) {
	ts, err := provider.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	base := otelhttp.NewTransport(&http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
	})
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: &oauth2.Transport{Source: ts, Base: base},
	}, nil
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"LOCALAPPDATA", "TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
		return os.TempDir()
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
