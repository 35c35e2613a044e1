package cookies

import "time"

// Format identifies the format of a browser cookie store.
type Format int

const (
	// FormatUnknown means the cookie store format could not be detected.
	FormatUnknown Format = iota
	// FormatFirefox is the Firefox moz_cookies SQLite schema.
	FormatFirefox
	// FormatChrome is the Chrome cookies SQLite schema. Only unencrypted
	// values are usable.
	FormatChrome
	// FormatNetscape is the Netscape tab-separated text format.
	FormatNetscape
)

func (f Format) String() string {
	switch f {
	case FormatFirefox:
		return "Firefox"
	case FormatChrome:
		return "Chrome"
	case FormatNetscape:
		return "Netscape"
	default:
		return "unknown"
	}
}

// Cookie is a single cookie read from a cookie store.
// Value is SENSITIVE and must never be logged or put in error messages.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expiry   time.Time
	Secure   bool
	HttpOnly bool
}

// Source describes where an imported cookie came from.
type Source struct {
	Path   string
	Format Format
}
