package common

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultBaseURL is the KM3NeT Oracle web database.
	DefaultBaseURL = "https://km3netdbweb.in2p3.fr"

	// CookieFileName is the name of the cookie file in the user's home directory.
	CookieFileName = ".km3netdb_cookie"

	// ConfigFileName is the name of the optional TOML config in the user's home directory.
	ConfigFileName = ".km3db.toml"

	// IdentityURL echoes the caller's external IP address.
	IdentityURL = "https://ident.me"

	DefaultMaxRetries   = 10
	DefaultAuthDelay    = 1 * time.Second
	DefaultNetworkDelay = 30 * time.Second
)

// homeDir returns the user's home directory, falling back to the working
// directory when it cannot be determined.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// DefaultCookiePath returns ~/.km3netdb_cookie.
func DefaultCookiePath() string {
	return filepath.Join(homeDir(), CookieFileName)
}

// DefaultConfigPath returns ~/.km3db.toml.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), ConfigFileName)
}
