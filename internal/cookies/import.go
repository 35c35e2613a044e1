package cookies

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// ErrSessionNotFound is returned when a cookie store has no usable session
// cookie for the requested domain.
var ErrSessionNotFound = errors.New("no session cookie found")

// ImportSession reads the sid cookie for domain from the browser cookie store
// at path. Firefox and Chrome databases are copied before reading; Netscape
// files are read in place. The freshest matching cookie wins.
func ImportSession(path string, domain string) (Cookie, *Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Cookie{}, nil, fmt.Errorf("cookie store not found: %w", err)
	}
	if info.IsDir() {
		return Cookie{}, nil, fmt.Errorf("%s is a directory, expected a cookie store file", path)
	}

	format, err := DetectFormat(path)
	if err != nil {
		return Cookie{}, nil, err
	}
	source := &Source{Path: path, Format: format}

	var found []Cookie
	switch format {
	case FormatFirefox, FormatChrome:
		copied, cleanup, err := safeCopy(path)
		if err != nil {
			return Cookie{}, nil, err
		}
		defer cleanup()
		found, err = readSQLite(copied, format, domain, SessionCookieName)
		if err != nil {
			return Cookie{}, nil, err
		}
	case FormatNetscape:
		all, err := ParseNetscape(afero.NewOsFs(), path, domain)
		if err != nil {
			return Cookie{}, nil, err
		}
		for _, c := range all {
			if c.Name == SessionCookieName {
				found = append(found, c)
			}
		}
	}

	if len(found) == 0 {
		return Cookie{}, source, fmt.Errorf("%w for %s in %s store", ErrSessionNotFound, domain, format)
	}
	best := found[0]
	for _, c := range found[1:] {
		if c.Expiry.After(best.Expiry) {
			best = c
		}
	}
	return best, source, nil
}
