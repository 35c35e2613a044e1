package cookies

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/afero"
)

// SessionCookieName is the name of the database session cookie.
const SessionCookieName = "sid"

// recordFileMode keeps the credential private to the user.
const recordFileMode = 0600

// ErrEmptyRecord is returned when the cookie file holds no token.
var ErrEmptyRecord = errors.New("cookie file is empty")

// Record is the persisted form of a session credential.
type Record struct {
	Domain string
	Value  string
}

// Line renders the record as a single Netscape cookie line:
// domain, TRUE, /, TRUE, 0, sid, value.
func (r Record) Line() string {
	return strings.Join([]string{
		r.Domain, "TRUE", "/", "TRUE", "0", SessionCookieName, r.Value,
	}, "\t")
}

// WriteRecord creates or truncates the file at path with the record line.
func WriteRecord(fsys afero.Fs, path string, r Record) error {
	if err := afero.WriteFile(fsys, path, []byte(r.Line()+"\n"), recordFileMode); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}
	return nil
}

// ReadToken returns the last whitespace-delimited token of the file at path.
// A missing file yields an error matching fs.ErrNotExist.
func ReadToken(fsys afero.Fs, path string) (string, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", ErrEmptyRecord
	}
	return fields[len(fields)-1], nil
}

// RemoveRecord deletes the file at path. A missing file is not an error.
func RemoveRecord(fsys afero.Fs, path string) error {
	err := fsys.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cookie file: %w", err)
	}
	return nil
}

// Exists reports whether a cookie file is present at path.
func Exists(fsys afero.Fs, path string) bool {
	ok, err := afero.Exists(fsys, path)
	return err == nil && ok
}
