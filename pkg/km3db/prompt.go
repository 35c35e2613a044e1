package km3db

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// CredentialPrompter asks the user for login details.
type CredentialPrompter interface {
	Username(ctx context.Context) (string, error)
	// Password must not echo the input.
	Password(ctx context.Context) (string, error)
}

// ErrNotInteractive is returned by TerminalPrompter when stdin is not a terminal.
var ErrNotInteractive = errors.New("not an interactive terminal")

// TerminalPrompter reads from a terminal; the password is read with echo off.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer

	reader *bufio.Reader
}

// NewTerminalPrompter prompts on stderr and reads from stdin.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func (t *TerminalPrompter) Username(_ context.Context) (string, error) {
	if t.reader == nil {
		t.reader = bufio.NewReader(t.In)
	}
	fmt.Fprint(t.Out, "Please enter your KM3NeT DB username: ")
	line, err := t.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read username: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (t *TerminalPrompter) Password(_ context.Context) (string, error) {
	fd := int(t.In.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNotInteractive
	}
	fmt.Fprint(t.Out, "Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(t.Out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

// StaticPrompter answers with fixed values.
type StaticPrompter struct {
	User string
	Pass string
}

func (s StaticPrompter) Username(context.Context) (string, error) { return s.User, nil }
func (s StaticPrompter) Password(context.Context) (string, error) { return s.Pass, nil }

var (
	_ CredentialPrompter = (*TerminalPrompter)(nil)
	_ CredentialPrompter = StaticPrompter{}
)
