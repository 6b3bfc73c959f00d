package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variable names read by FromEnv.
const (
	EnvEndpoint     = "DHCORE_ENDPOINT"
	EnvUser         = "DHCORE_USER"
	EnvPassword     = "DHCORE_PASSWORD"
	EnvAccessToken  = "DHCORE_ACCESS_TOKEN"
	EnvRefreshToken = "DHCORE_REFRESH_TOKEN"
	EnvClientID     = "DHCORE_CLIENT_ID"
	EnvIssuer       = "DHCORE_ISSUER"
)

// Defaults applied by Default.
const (
	DefaultAPILevelMin = 5
	DefaultAPILevelMax = 100
	DefaultTimeout     = 60 * time.Second
	DefaultCacheFile   = ".dhcore.yaml"
)

// AuthMode is the authentication scheme a Config selects.
type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthBasic  AuthMode = "basic"
	AuthOAuth2 AuthMode = "oauth2"
)

// Config holds everything a backend client needs.
type Config struct {
	Endpoint       string        `yaml:"endpoint,omitempty" validate:"omitempty,url"`
	User           string        `yaml:"user,omitempty"`
	Password       string        `yaml:"password,omitempty"`
	AccessToken    string        `yaml:"access_token,omitempty"`
	RefreshToken   string        `yaml:"refresh_token,omitempty"`
	ClientID       string        `yaml:"client_id,omitempty"`
	Issuer         string        `yaml:"issuer,omitempty" validate:"omitempty,url"`
	TokenCachePath string        `yaml:"token_cache_path,omitempty"`
	APILevelMin    int           `yaml:"api_level_min,omitempty" validate:"gte=0"`
	APILevelMax    int           `yaml:"api_level_max,omitempty" validate:"gtefield=APILevelMin"`
	Timeout        time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the built-in configuration.
func Default() *Config {
	cache := DefaultCacheFile
	if home, err := os.UserHomeDir(); err == nil {
		cache = filepath.Join(home, DefaultCacheFile)
	}
	return &Config{
		TokenCachePath: cache,
		APILevelMin:    DefaultAPILevelMin,
		APILevelMax:    DefaultAPILevelMax,
		Timeout:        DefaultTimeout,
	}
}

// FromEnv reads the DHCORE_* variables. Unset variables leave fields empty.
func FromEnv() *Config {
	return &Config{
		Endpoint:     os.Getenv(EnvEndpoint),
		User:         os.Getenv(EnvUser),
		Password:     os.Getenv(EnvPassword),
		AccessToken:  os.Getenv(EnvAccessToken),
		RefreshToken: os.Getenv(EnvRefreshToken),
		ClientID:     os.Getenv(EnvClientID),
		Issuer:       os.Getenv(EnvIssuer),
	}
}

// LoadFile reads a YAML config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Resolve layers defaults, environment, the optional file at path and
// explicit, then validates the result. A missing file at path is an error;
// pass "" to skip the file layer.
func Resolve(explicit *Config, path string) (*Config, error) {
	cfg := Default().Merge(FromEnv())
	if path != "" {
		file, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = cfg.Merge(file)
	}
	cfg = cfg.Merge(explicit)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge returns a copy of c with every non-zero field of over applied.
func (c *Config) Merge(over *Config) *Config {
	out := *c
	if over == nil {
		return &out
	}
	mergeString(&out.Endpoint, over.Endpoint)
	mergeString(&out.User, over.User)
	mergeString(&out.Password, over.Password)
	mergeString(&out.AccessToken, over.AccessToken)
	mergeString(&out.RefreshToken, over.RefreshToken)
	mergeString(&out.ClientID, over.ClientID)
	mergeString(&out.Issuer, over.Issuer)
	mergeString(&out.TokenCachePath, over.TokenCachePath)
	if over.APILevelMin != 0 {
		out.APILevelMin = over.APILevelMin
	}
	if over.APILevelMax != 0 {
		out.APILevelMax = over.APILevelMax
	}
	if over.Timeout != 0 {
		out.Timeout = over.Timeout
	}
	return &out
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks field formats and the API level range.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: field %s failed %q", verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// AuthMode reports which credentials the client sends. OAuth2 wins when both
// a token and a user are configured.
func (c *Config) AuthMode() AuthMode {
	switch {
	case c.AccessToken != "" || c.RefreshToken != "":
		return AuthOAuth2
	case c.User != "":
		return AuthBasic
	default:
		return AuthNone
	}
}

// CanRefresh reports whether an OAuth2 refresh can be attempted.
func (c *Config) CanRefresh() bool {
	return c.RefreshToken != "" && c.Issuer != ""
}

// ApplyTokens fills the token fields an OAuth2 configuration left empty
// from the cache. Tokens the configuration already carries are kept.
func (c *Config) ApplyTokens(t *Tokens) {
	if t == nil || c.AuthMode() != AuthOAuth2 {
		return
	}
	fillString(&c.AccessToken, t.AccessToken)
	fillString(&c.RefreshToken, t.RefreshToken)
}

func fillString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
