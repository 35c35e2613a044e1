// Package config loads the km3db command line settings.
//
// Values are layered, later sources winning: built-in defaults, a TOML file
// (~/.km3db.toml or $KM3NET_DB_CONFIG), a .env file in the working directory
// and finally the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/km3py/km3db/common"
)

var (
	ErrParsingConfig = errors.New("failed to parse configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds the client settings. The env tags mirror the names in
// package common.
type Config struct {
	URL          string        `toml:"url" env:"KM3NET_DB_URL"`
	CookieFile   string        `toml:"cookie_file" env:"KM3NET_DB_COOKIE_FILE"`
	MaxRetries   int           `toml:"max_retries" env:"KM3NET_DB_MAX_RETRIES"`
	Keyring      bool          `toml:"keyring" env:"KM3NET_DB_KEYRING"`
	Insecure     bool          `toml:"insecure" env:"KM3NET_DB_INSECURE"`
	AuthDelay    time.Duration `toml:"auth_delay" env:"KM3NET_DB_AUTH_DELAY"`
	NetworkDelay time.Duration `toml:"network_delay" env:"KM3NET_DB_NETWORK_DELAY"`
	Debug        bool          `toml:"debug" env:"KM3NET_DB_DEBUG"`
	DebugLog     string        `toml:"debug_log" env:"KM3NET_DB_DEBUG_LOG"`

	// Source is the TOML file that was read, empty if none.
	Source string `toml:"-"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		URL:          common.DefaultBaseURL,
		CookieFile:   common.DefaultCookiePath(),
		MaxRetries:   common.DefaultMaxRetries,
		Insecure:     true,
		AuthDelay:    common.DefaultAuthDelay,
		NetworkDelay: common.DefaultNetworkDelay,
	}
}

// Options controls where Load looks. The zero value reads the real
// environment and ./.env.
type Options struct {
	// Path is the TOML file. Empty means $KM3NET_DB_CONFIG, then
	// ~/.km3db.toml; a missing file is only an error when it was named
	// explicitly.
	Path string

	// DotEnv lists .env files applied beneath the environment.
	// Nil means ".env"; missing files are ignored.
	DotEnv []string

	// Environment replaces the process environment when non-nil.
	Environment map[string]string
}

// Load builds a Config from defaults, the TOML file, .env and the environment.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	dotenv := opts.DotEnv
	if dotenv == nil {
		dotenv = []string{".env"}
	}
	environ, err := loadDotEnv(dotenv, opts.Environment)
	if err != nil {
		return nil, err
	}

	lookup := os.Getenv
	if environ != nil {
		lookup = func(k string) string { return environ[k] }
	}

	path, explicit := opts.Path, opts.Path != ""
	if !explicit {
		if path = lookup(common.ConfigEnv); path != "" {
			explicit = true
		} else {
			path = common.DefaultConfigPath()
		}
	}
	if err := cfg.decodeFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	envOpts := env.Options{}
	if environ != nil {
		envOpts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, envOpts); err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv applies .env files without overriding variables already set.
// With a nil environ they go into the process environment; otherwise into a
// copy of environ, which is returned.
func loadDotEnv(files []string, environ map[string]string) (map[string]string, error) {
	if environ == nil {
		for _, name := range files {
			if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s: %w", ErrParsingConfig, name, err)
			}
		}
		return nil, nil
	}

	merged := make(map[string]string, len(environ))
	for k, v := range environ {
		merged[k] = v
	}
	for _, name := range files {
		values, err := godotenv.Read(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParsingConfig, name, err)
		}
		for k, v := range values {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}
	return merged, nil
}

func (c *Config) decodeFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrParsingConfig, path, err)
	}
	c.Source = path
	return nil
}

// Validate checks value ranges and the base URL.
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: url %q", ErrInvalidConfig, c.URL)
	}
	if c.CookieFile == "" {
		return fmt.Errorf("%w: empty cookie_file", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries %d", ErrInvalidConfig, c.MaxRetries)
	}
	if c.AuthDelay < 0 || c.NetworkDelay < 0 {
		return fmt.Errorf("%w: negative delay", ErrInvalidConfig)
	}
	return nil
}
