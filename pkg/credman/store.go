// Package credman persists a single database session credential.
//
// Two stores are provided: FileStore, the Netscape-format cookie file shared
// with the other km3db clients, and keyring.Store, backed by the operating
// system's keyring. Stored values are opaque to this package; validation is
// the caller's job.
package credman

import "errors"

// ErrNotFound is returned by Load when the store holds no credential.
var ErrNotFound = errors.New("credential not found")

// Store persists one credential.
type Store interface {
	// Name identifies the store in log messages.
	Name() string
	// Load returns the stored credential or an error matching ErrNotFound.
	Load() (string, error)
	// Save creates or replaces the stored credential.
	Save(value string) error
	// Delete removes the stored credential. Deleting an empty store is not an error.
	Delete() error
}
