package credman

import (
	"errors"
	"io/fs"

	"github.com/km3py/km3db/internal/cookies"
	"github.com/spf13/afero"
)

// FileStore keeps the credential in a cookie file on fs.
type FileStore struct {
	fs     afero.Fs
	path   string
	domain string
}

// NewFileStore returns a store for the cookie file at path. Records are
// written for domain.
func NewFileStore(fsys afero.Fs, path, domain string) *FileStore {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileStore{fs: fsys, path: path, domain: domain}
}

// Path returns the cookie file location.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Name() string { return "cookie file " + f.path }

// Load returns the last token of the cookie file.
func (f *FileStore) Load() (string, error) {
	token, err := cookies.ReadToken(f.fs, f.path)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, cookies.ErrEmptyRecord) {
		return "", ErrNotFound
	}
	return token, err
}

func (f *FileStore) Save(value string) error {
	return cookies.WriteRecord(f.fs, f.path, cookies.Record{Domain: f.domain, Value: value})
}

func (f *FileStore) Delete() error {
	return cookies.RemoveRecord(f.fs, f.path)
}

var _ Store = (*FileStore)(nil)
