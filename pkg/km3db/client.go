package km3db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/km3py/km3db/common"
	"github.com/km3py/km3db/pkg/logger"
	"golang.org/x/net/publicsuffix"
)

// ErrNoCredential is returned when a CredentialSource yields an empty credential.
var ErrNoCredential = errors.New("no session credential")

// Options configures a Client.
type Options struct {
	BaseURL string // Defaults to common.DefaultBaseURL

	// Credentials resolves the session credential. Defaults to a Resolver
	// with default options for BaseURL.
	Credentials CredentialSource

	// Retry defaults to DefaultRetryConfig when left zero.
	Retry RetryConfig

	// InsecureSkipVerify disables TLS certificate verification. The KM3NeT
	// database certificate does not verify, so DefaultOptions sets it.
	InsecureSkipVerify bool

	// Timeout bounds a single HTTP exchange. Zero means no limit.
	Timeout time.Duration

	// Transport overrides the HTTP transport; InsecureSkipVerify is then ignored.
	Transport http.RoundTripper

	Logger logger.Logger
}

// DefaultOptions returns the options for the KM3NeT database.
func DefaultOptions() *Options {
	return &Options{
		BaseURL:            common.DefaultBaseURL,
		Retry:              DefaultRetryConfig(),
		InsecureSkipVerify: true,
		Timeout:            5 * time.Minute,
	}
}

// Client performs authenticated GET requests against the database.
// The credential is resolved on first use and reused until the server
// rejects it. A Client must not be used from multiple goroutines.
type Client struct {
	base        *url.URL
	credentials CredentialSource
	retry       RetryConfig
	transport   http.RoundTripper
	timeout     time.Duration
	log         logger.Logger

	credential Credential
	session    *http.Client

	after func(time.Duration) <-chan time.Time
}

// NewClient creates a Client. opts may be nil for DefaultOptions.
func NewClient(opts *Options) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	rawBase := strings.TrimRight(opts.BaseURL, "/")
	if rawBase == "" {
		rawBase = common.DefaultBaseURL
	}
	base, err := url.Parse(rawBase)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url: %q", rawBase)
	}

	c := &Client{
		base:        base,
		credentials: opts.Credentials,
		retry:       opts.Retry,
		transport:   opts.Transport,
		timeout:     opts.Timeout,
		log:         opts.Logger,
		after:       time.After,
	}
	if c.log == nil {
		c.log = logger.NewNopLogger()
	}
	if c.credentials == nil {
		c.credentials = NewResolver(&ResolverOptions{BaseURL: rawBase, Logger: c.log})
	}
	if c.transport == nil {
		c.transport = NewHTTPClient(opts.InsecureSkipVerify, 0).Transport
	}
	if c.retry == (RetryConfig{}) {
		c.retry = DefaultRetryConfig()
	}
	if c.retry.MaxRetries < 0 {
		c.retry.MaxRetries = 0
	}
	return c, nil
}

// BaseURL returns the database root, without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base.String()
}

type getOptions struct {
	def        string
	maxRetries int
}

// GetOption customises a single Get.
type GetOption func(*getOptions)

// WithDefault sets the value Get returns when the request fails.
func WithDefault(def string) GetOption {
	return func(o *getOptions) { o.def = def }
}

// WithMaxRetries overrides the client's retry budget for one request.
func WithMaxRetries(n int) GetOption {
	return func(o *getOptions) {
		if n < 0 {
			n = 0
		}
		o.maxRetries = n
	}
}

// Get fetches path relative to the base URL and returns the body as text.
// Failures are logged and yield the default ("" unless WithDefault is given).
func (c *Client) Get(ctx context.Context, path string, opts ...GetOption) string {
	o := c.getOptions(opts)
	body, ok := c.get(ctx, path, o.maxRetries)
	if !ok {
		return o.def
	}
	return strings.ToValidUTF8(string(body), "\uFFFD")
}

// GetBytes is Get returning the raw body; ok is false when the request failed.
// WithDefault has no effect.
func (c *Client) GetBytes(ctx context.Context, path string, opts ...GetOption) (body []byte, ok bool) {
	o := c.getOptions(opts)
	return c.get(ctx, path, o.maxRetries)
}

func (c *Client) getOptions(opts []GetOption) getOptions {
	o := getOptions{maxRetries: c.retry.MaxRetries}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Target returns the URL requested for path: base URL, "/", and path with
// percent-escapes decoded. Spaces are re-encoded as %20.
func (c *Client) Target(path string) string {
	if p, err := url.PathUnescape(path); err == nil {
		path = p
	}
	path = strings.ReplaceAll(path, " ", "%20")
	return c.base.String() + "/" + strings.TrimLeft(path, "/")
}

// get runs the request loop. Each pass either succeeds, gives up or waits
// and retries; state.Attempts never exceeds maxRetries.
func (c *Client) get(ctx context.Context, path string, maxRetries int) ([]byte, bool) {
	target := c.Target(path)
	retry := c.retry
	retry.MaxRetries = maxRetries
	state := &RetryState{}
	for {
		session, err := c.ensureSession(ctx)
		if err != nil {
			c.log.Error("no session for %s: %v", path, err)
			return nil, false
		}

		body, err := c.fetch(ctx, session, target)
		if err == nil {
			return body, true
		}
		state.LastError = err

		category := ClassifyError(err)
		switch category {
		case ErrCategoryTruncated:
			var t *TruncatedError
			errors.As(err, &t)
			c.log.Warning("incomplete read of %s, using %d bytes", path, len(t.Partial))
			return t.Partial, true
		case ErrCategoryAuth, ErrCategoryNetwork:
			if !retry.ShouldRetry(state, err) {
				c.log.Error("giving up on %s after %d retries: %v", path, state.Attempts, err)
				return nil, false
			}
			state.Attempts++
			delay := retry.Delay(category)
			c.log.Warning("%s failure on %s (%v), retry %d/%d in %s",
				category, path, err, state.Attempts, maxRetries, delay)
			if err := waitFor(ctx, state, delay, c.after); err != nil {
				c.log.Error("giving up on %s: %v", path, err)
				return nil, false
			}
			if category == ErrCategoryAuth {
				c.invalidate()
			}
		default:
			c.log.Error("request for %s failed: %v", path, err)
			return nil, false
		}
	}
}

// ensureSession resolves the credential and builds the session transport if
// there is none yet.
func (c *Client) ensureSession(ctx context.Context) (*http.Client, error) {
	if c.session != nil {
		return c.session, nil
	}
	if c.credential == "" {
		cred, err := c.credentials.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		if cred == "" {
			return nil, ErrNoCredential
		}
		c.credential = cred
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	jar.SetCookies(c.base, []*http.Cookie{{
		Name:  "sid",
		Value: string(c.credential),
		Path:  "/",
	}})
	c.session = &http.Client{
		Transport: c.transport,
		Jar:       jar,
		Timeout:   c.timeout,
	}
	return c.session, nil
}

// invalidate drops the session and every persisted copy of its credential.
func (c *Client) invalidate() {
	if c.session != nil {
		c.session.CloseIdleConnections()
	}
	c.session = nil
	c.credential = ""
	if err := c.credentials.Forget(); err != nil {
		c.log.Warning("cannot remove stale credential: %v", err)
	}
}

func (c *Client) fetch(ctx context.Context, session *http.Client, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := session.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, &TruncatedError{Partial: body, Err: err}
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}
