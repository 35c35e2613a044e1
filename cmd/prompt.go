package cmd

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/km3py/km3db/pkg/km3db"
	"golang.org/x/term"
)

// defaultPrompter returns nil when stdin is not a terminal, so login
// details must then come from the environment.
func defaultPrompter() km3db.CredentialPrompter {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	if os.Getenv("TERM") == "dumb" {
		return km3db.NewTerminalPrompter()
	}
	return huhPrompter{}
}

// huhPrompter asks for login details with an interactive form.
type huhPrompter struct{}

func (huhPrompter) Username(ctx context.Context) (string, error) {
	var username string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("KM3NeT DB username").
				Value(&username).
				Validate(notBlank("username")),
		),
	).RunWithContext(ctx)
	return strings.TrimSpace(username), err
}

func (huhPrompter) Password(ctx context.Context) (string, error) {
	var password string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(notBlank("password")),
		),
	).RunWithContext(ctx)
	return password, err
}

func notBlank(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(what + " must not be empty")
		}
		return nil
	}
}
