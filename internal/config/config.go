package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Environment variable names.
const (
	EnvConfigPath          = "INBOXCAL_CONFIG"
	EnvLogFormat           = "INBOXCAL_LOG_FORMAT"
	EnvCalDAVURL           = "CALDAV_URL"
	EnvCalDAVUsername      = "CALDAV_USERNAME"
	EnvCalDAVPassword      = "CALDAV_PASSWORD"
	EnvCalDAVPasswordParam = "CALDAV_PASSWORD_SSM_PARAMETER"
	EnvCalDAVTimezone      = "CALDAV_TIMEZONE"
	EnvCalDAVTimeout       = "CALDAV_TIMEOUT"
	EnvGmailTokenFile      = "INBOXCAL_GMAIL_TOKEN_FILE"
	EnvGmailCredentials    = "INBOXCAL_GMAIL_CREDENTIALS_FILE"
)

// DefaultTimeout bounds a single CalDAV request.
const DefaultTimeout = 30 * time.Second

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the resolved configuration.
type Config struct {
	// Path is the config file that was read, empty when none existed.
	Path      string
	LogFormat string
	CalDAV    CalDAVConfig
	Gmail     GmailConfig
}

// CalDAVConfig holds the calendar server settings.
type CalDAVConfig struct {
	URL      string
	Username string
	Password string
	// PasswordSSMParameter names an SSM SecureString holding the password.
	PasswordSSMParameter string
	// Timezone is an IANA zone used for day boundaries and floating times.
	Timezone string
	Timeout  time.Duration
}

// GmailConfig points at the OAuth files of the mail collaborator.
type GmailConfig struct {
	TokenFile       string
	CredentialsFile string
}

// Overrides carries values set explicitly on the command line. Empty
// fields leave the lower layers untouched.
type Overrides struct {
	ConfigPath string
	CalDAVURL  string
	Username   string
	Timezone   string
	LogFormat  string
}

// ParameterGetter is the subset of the SSM client used to resolve secrets.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadOptions tunes Load. The zero value reads the default locations.
type LoadOptions struct {
	// EnvFile is the dotenv file to read, ".env" when empty.
	EnvFile   string
	Overrides Overrides
	// SSM is used for password lookups. When nil a client is built from
	// the default AWS configuration on first use.
	SSM ParameterGetter
}

type fileConfig struct {
	LogFormat string     `toml:"log_format"`
	CalDAV    fileCalDAV `toml:"caldav"`
	Gmail     fileGmail  `toml:"gmail"`
}

type fileCalDAV struct {
	URL                  string `toml:"url"`
	Username             string `toml:"username"`
	Password             string `toml:"password"`
	PasswordSSMParameter string `toml:"password_ssm_parameter"`
	Timezone             string `toml:"timezone"`
	Timeout              string `toml:"timeout"`
}

type fileGmail struct {
	TokenFile       string `toml:"token_file"`
	CredentialsFile string `toml:"credentials_file"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		LogFormat: "text",
		CalDAV: CalDAVConfig{
			Timeout: DefaultTimeout,
		},
	}
}

// Load resolves the configuration from every layer.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg := Default()

	path := opts.Overrides.ConfigPath
	explicit := path != ""
	if !explicit {
		path = getEnvOrDefault(EnvConfigPath, DefaultPath())
		explicit = os.Getenv(EnvConfigPath) != ""
	}
	if err := cfg.applyFile(expandHome(path), explicit); err != nil {
		return nil, err
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// A missing .env file is fine. Variables already set in the
	// environment are not overwritten.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, envFile, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyOverrides(opts.Overrides)

	cfg.Gmail.TokenFile = expandHome(cfg.Gmail.TokenFile)
	cfg.Gmail.CredentialsFile = expandHome(cfg.Gmail.CredentialsFile)

	if err := cfg.resolvePassword(ctx, opts.SSM); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string, required bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	c.Path = path

	setIfNotEmpty(&c.LogFormat, fc.LogFormat)
	setIfNotEmpty(&c.CalDAV.URL, fc.CalDAV.URL)
	setIfNotEmpty(&c.CalDAV.Username, fc.CalDAV.Username)
	setIfNotEmpty(&c.CalDAV.Password, fc.CalDAV.Password)
	setIfNotEmpty(&c.CalDAV.PasswordSSMParameter, fc.CalDAV.PasswordSSMParameter)
	setIfNotEmpty(&c.CalDAV.Timezone, fc.CalDAV.Timezone)
	setIfNotEmpty(&c.Gmail.TokenFile, fc.Gmail.TokenFile)
	setIfNotEmpty(&c.Gmail.CredentialsFile, fc.Gmail.CredentialsFile)
	if fc.CalDAV.Timeout != "" {
		d, err := time.ParseDuration(fc.CalDAV.Timeout)
		if err != nil {
			return fmt.Errorf("%w: caldav.timeout: %v", ErrInvalidConfig, err)
		}
		c.CalDAV.Timeout = d
	}
	return nil
}

func (c *Config) applyEnv() error {
	setIfNotEmpty(&c.LogFormat, os.Getenv(EnvLogFormat))
	setIfNotEmpty(&c.CalDAV.URL, os.Getenv(EnvCalDAVURL))
	setIfNotEmpty(&c.CalDAV.Username, os.Getenv(EnvCalDAVUsername))
	setIfNotEmpty(&c.CalDAV.Password, os.Getenv(EnvCalDAVPassword))
	setIfNotEmpty(&c.CalDAV.PasswordSSMParameter, os.Getenv(EnvCalDAVPasswordParam))
	setIfNotEmpty(&c.CalDAV.Timezone, os.Getenv(EnvCalDAVTimezone))
	setIfNotEmpty(&c.Gmail.TokenFile, os.Getenv(EnvGmailTokenFile))
	setIfNotEmpty(&c.Gmail.CredentialsFile, os.Getenv(EnvGmailCredentials))
	if v := os.Getenv(EnvCalDAVTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvCalDAVTimeout, err)
		}
		c.CalDAV.Timeout = d
	}
	return nil
}

func (c *Config) applyOverrides(o Overrides) {
	setIfNotEmpty(&c.CalDAV.URL, o.CalDAVURL)
	setIfNotEmpty(&c.CalDAV.Username, o.Username)
	setIfNotEmpty(&c.CalDAV.Timezone, o.Timezone)
	setIfNotEmpty(&c.LogFormat, o.LogFormat)
}

// resolvePassword fetches the CalDAV password from SSM when only the
// parameter name is known.
func (c *Config) resolvePassword(ctx context.Context, getter ParameterGetter) error {
	if c.CalDAV.Password != "" || c.CalDAV.PasswordSSMParameter == "" {
		return nil
	}
	if getter == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}
		getter = ssm.NewFromConfig(awsCfg)
	}
	out, err := getter.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(c.CalDAV.PasswordSSMParameter),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to get parameter %s: %w", c.CalDAV.PasswordSSMParameter, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return fmt.Errorf("parameter %s is empty", c.CalDAV.PasswordSSMParameter)
	}
	c.CalDAV.Password = *out.Parameter.Value
	return nil
}

// Validate checks the values that can be checked without network access.
func (c *Config) Validate() error {
	if c.CalDAV.URL != "" {
		u, err := url.Parse(c.CalDAV.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: caldav url must be an absolute http(s) URL", ErrInvalidConfig)
		}
	}
	if c.CalDAV.Timezone != "" {
		if _, err := time.LoadLocation(c.CalDAV.Timezone); err != nil {
			return fmt.Errorf("%w: caldav timezone: %v", ErrInvalidConfig, err)
		}
	}
	if c.CalDAV.Timeout <= 0 {
		return fmt.Errorf("%w: caldav timeout must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// CalDAVEnabled reports whether enough is configured to log in.
func (c *Config) CalDAVEnabled() bool {
	return c.CalDAV.URL != "" && c.CalDAV.Username != "" && c.CalDAV.Password != ""
}

// Location returns the configured time zone, or time.Local.
func (c *Config) Location() *time.Location {
	if c.CalDAV.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.CalDAV.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DefaultPath returns the config file location under the user config dir.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "inboxcal", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "inboxcal", "config.toml")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
