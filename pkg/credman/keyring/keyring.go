// Package keyring stores the session credential in the operating system's
// native keyring service.
package keyring

import (
	"errors"
	"fmt"

	"github.com/km3py/km3db/pkg/credman"
	"github.com/zalando/go-keyring"
)

const (
	DefaultService = "km3db"
	DefaultUser    = "sid"
)

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

// Store keeps the credential under Service/User in the OS keyring.
type Store struct {
	Service string
	User    string
}

// New returns a Store using the default service and user names.
func New() *Store {
	return &Store{
		Service: DefaultService,
		User:    DefaultUser,
	}
}

func (k *Store) Name() string { return "keyring " + k.Service }

func (k *Store) Load() (string, error) {
	v, err := keyringGet(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", credman.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring get: %w", err)
	}
	if v == "" {
		return "", credman.ErrNotFound
	}
	return v, nil
}

func (k *Store) Save(value string) error {
	if err := keyringSet(k.Service, k.User, value); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

func (k *Store) Delete() error {
	err := keyringDelete(k.Service, k.User)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}

var _ credman.Store = (*Store)(nil)
