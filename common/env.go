// Package common provides shared constants used across the km3db library
// and its command line interface.
package common

// Environment variable names for configuration.
const (
	// UsernameEnv supplies the database username for the login fallback.
	UsernameEnv = "KM3NET_DB_USERNAME"

	// PasswordEnv supplies the database password for the login fallback.
	PasswordEnv = "KM3NET_DB_PASSWORD"

	// CookieEnv supplies a raw session credential, bypassing login.
	CookieEnv = "KM3NET_DB_COOKIE"

	// URLEnv overrides the database base URL.
	URLEnv = "KM3NET_DB_URL"

	// CookieFileEnv overrides the cookie file location.
	CookieFileEnv = "KM3NET_DB_COOKIE_FILE"

	// MaxRetriesEnv overrides the retry budget of a single request.
	MaxRetriesEnv = "KM3NET_DB_MAX_RETRIES"

	// KeyringEnv enables the OS keyring credential store.
	KeyringEnv = "KM3NET_DB_KEYRING"

	// ConfigEnv points at a TOML configuration file.
	ConfigEnv = "KM3NET_DB_CONFIG"

	// InsecureEnv toggles TLS certificate verification off ("true") or on ("false").
	InsecureEnv = "KM3NET_DB_INSECURE"

	AuthDelayEnv    = "KM3NET_DB_AUTH_DELAY"
	NetworkDelayEnv = "KM3NET_DB_NETWORK_DELAY"

	// DebugEnv enables debug logging.
	DebugEnv = "KM3NET_DB_DEBUG"

	// DebugLogEnv names a file receiving debug logs in addition to stderr.
	DebugLogEnv = "KM3NET_DB_DEBUG_LOG"
)
