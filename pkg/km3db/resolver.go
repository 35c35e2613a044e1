package km3db

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/km3py/km3db/common"
	"github.com/km3py/km3db/pkg/credman"
	"github.com/km3py/km3db/pkg/logger"
	"github.com/spf13/afero"
)

// CredentialSource resolves and forgets the session credential. Resolver is
// the production implementation.
type CredentialSource interface {
	Resolve(ctx context.Context) (Credential, error)
	// Forget drops any persisted credential so the next Resolve cannot return it.
	Forget() error
}

// ResolverOptions configures a Resolver. The zero value is usable.
type ResolverOptions struct {
	BaseURL string // Defaults to common.DefaultBaseURL

	// Fs and CookiePath locate the cookie file. Defaults: the OS filesystem
	// and ~/.km3netdb_cookie.
	Fs         afero.Fs
	CookiePath string

	// Keyring is consulted after the cookie file and written after a login.
	// Nil disables it.
	Keyring credman.Store

	// TrustedHosts defaults to DefaultTrustedHosts when nil. A non-nil empty
	// slice disables the allow-list.
	TrustedHosts []TrustedHost
	Identity     Identity

	// Prompter asks for missing login details. Nil disables interactive login.
	Prompter CredentialPrompter

	NetworkClass NetworkClass
	HTTPClient   *http.Client
	Getenv       func(string) string
	Logger       logger.Logger
}

// Resolver determines the session credential from the first source that
// yields a valid one.
type Resolver struct {
	baseURL  string
	file     *credman.FileStore
	keyring  credman.Store
	hosts    []TrustedHost
	identity Identity
	prompter CredentialPrompter
	class    NetworkClass
	client   *http.Client
	getenv   func(string) string
	log      logger.Logger
}

// NewResolver creates a Resolver from opts. opts may be nil.
func NewResolver(opts *ResolverOptions) *Resolver {
	if opts == nil {
		opts = &ResolverOptions{}
	}
	r := &Resolver{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		keyring:  opts.Keyring,
		hosts:    opts.TrustedHosts,
		identity: opts.Identity,
		prompter: opts.Prompter,
		class:    opts.NetworkClass,
		client:   opts.HTTPClient,
		getenv:   opts.Getenv,
		log:      opts.Logger,
	}
	if r.baseURL == "" {
		r.baseURL = common.DefaultBaseURL
	}
	if r.hosts == nil {
		r.hosts = DefaultTrustedHosts()
	}
	if r.client == nil {
		r.client = NewHTTPClient(true, time.Minute)
	}
	if r.identity == nil {
		r.identity = NewNetIdentity(&http.Client{Timeout: 10 * time.Second})
	}
	if r.getenv == nil {
		r.getenv = os.Getenv
	}
	if r.log == nil {
		r.log = logger.NewNopLogger()
	}
	cookiePath := opts.CookiePath
	if cookiePath == "" {
		cookiePath = common.DefaultCookiePath()
	}
	r.file = credman.NewFileStore(opts.Fs, cookiePath, hostOf(r.baseURL))
	return r
}

// NewHTTPClient returns a client for the database. Certificate verification is
// skipped when insecure is set; the default KM3NeT endpoint needs it.
func NewHTTPClient(insecure bool, timeout time.Duration) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: insecure}
	return &http.Client{Transport: t, Timeout: timeout}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}

// CookiePath returns the cookie file location.
func (r *Resolver) CookiePath() string {
	return r.file.Path()
}

// Resolve returns the session credential. Sources are tried in order:
// allow-listed host, cookie file, keyring, KM3NET_DB_COOKIE, login.
func (r *Resolver) Resolve(ctx context.Context) (Credential, error) {
	for _, h := range r.hosts {
		if h.Match != nil && h.Match(ctx, r.identity) {
			r.log.Info("using session of allow-listed host %q", h.Name)
			return h.Credential, nil
		}
	}

	stores := []credman.Store{r.file}
	if r.keyring != nil {
		stores = append(stores, r.keyring)
	}
	for _, s := range stores {
		v, err := s.Load()
		if errors.Is(err, credman.ErrNotFound) {
			continue
		}
		if err != nil {
			r.log.Warning("cannot read %s: %v", s.Name(), err)
			continue
		}
		if err := ValidateStored(v); err != nil {
			r.log.Warning("ignoring malformed credential in %s: %v", s.Name(), err)
			continue
		}
		r.log.Debug("using credential from %s", s.Name())
		return Credential(v), nil
	}

	if v := r.getenv(common.CookieEnv); v != "" {
		if err := ValidateStored(v); err != nil {
			r.log.Warning("ignoring malformed %s: %v", common.CookieEnv, err)
		} else {
			r.log.Debug("using credential from %s", common.CookieEnv)
			return Credential(v), nil
		}
	}

	return r.Authenticate(ctx)
}

// Authenticate logs in with the username and password from the environment,
// asking the prompter for whatever is missing. Cached credentials are ignored.
func (r *Resolver) Authenticate(ctx context.Context) (Credential, error) {
	username, password, err := r.loginDetails(ctx)
	if err != nil {
		return "", err
	}
	return r.Login(ctx, username, password)
}

func (r *Resolver) loginDetails(ctx context.Context) (string, string, error) {
	username := r.getenv(common.UsernameEnv)
	password := r.getenv(common.PasswordEnv)
	if username != "" && password != "" {
		return username, password, nil
	}
	if r.prompter == nil {
		return "", "", fmt.Errorf("%w: no credential source available", ErrAuthentication)
	}
	var err error
	if username == "" {
		if username, err = r.prompter.Username(ctx); err != nil {
			return "", "", fmt.Errorf("%w: %w", ErrAuthentication, err)
		}
	}
	if password == "" {
		if password, err = r.prompter.Password(ctx); err != nil {
			return "", "", fmt.Errorf("%w: %w", ErrAuthentication, err)
		}
	}
	return username, password, nil
}

// LoginURL returns {base}/home.htm?usr=...&pwd=...&persist=y.
func (r *Resolver) LoginURL(username, password string) string {
	return r.baseURL + "/home.htm?usr=" + url.QueryEscape(username) +
		"&pwd=" + url.QueryEscape(password) + "&persist=y"
}

// Login requests a new credential and persists it. A response without a
// valid credential fails with ErrAuthentication and persists nothing.
func (r *Resolver) Login(ctx context.Context, username, password string) (Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.LoginURL(username, password), nil)
	if err != nil {
		return "", fmt.Errorf("%w: build login request: %w", ErrAuthentication, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		// url.Error carries the query string, which holds the password.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", fmt.Errorf("%w: login request: %w", ErrAuthentication, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("%w: read login response: %w", ErrAuthentication, err)
	}

	token, ok := credentialFromLogin(string(body))
	if !ok || r.class.Validate(token) != nil {
		return "", fmt.Errorf("%w: wrong username or password", ErrAuthentication)
	}
	cred := Credential(token)
	if err := r.Persist(cred); err != nil {
		r.log.Warning("session credential not persisted: %v", err)
	}
	r.log.Info("logged in as %s", username)
	return cred, nil
}

// Persist writes a valid credential to the cookie file and, when enabled,
// the keyring.
func (r *Resolver) Persist(cred Credential) error {
	if err := r.class.Validate(string(cred)); err != nil {
		return err
	}
	var errs []error
	if err := r.file.Save(string(cred)); err != nil {
		errs = append(errs, err)
	}
	if r.keyring != nil {
		if err := r.keyring.Save(string(cred)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Forget removes the cookie file and the keyring entry.
func (r *Resolver) Forget() error {
	var errs []error
	if err := r.file.Delete(); err != nil {
		errs = append(errs, err)
	}
	if r.keyring != nil {
		if err := r.keyring.Delete(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ CredentialSource = (*Resolver)(nil)
