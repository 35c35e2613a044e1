package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"

	"github.com/km3py/km3db/internal/config"
	"github.com/km3py/km3db/pkg/credman"
	"github.com/km3py/km3db/pkg/credman/keyring"
	"github.com/km3py/km3db/pkg/km3db"
	"github.com/km3py/km3db/pkg/logger"
	"github.com/urfave/cli"
)

// Overridden in tests.
var (
	trustedHosts = km3db.DefaultTrustedHosts
	newPrompter  = defaultPrompter
	newKeyring   = func() credman.Store { return keyring.New() }
)

// clientEnv is everything a command needs to talk to the database.
type clientEnv struct {
	ctx      context.Context
	cfg      *config.Config
	log      logger.Logger
	resolver *km3db.Resolver
	client   *km3db.Client
	stop     context.CancelFunc
}

type envOptions struct {
	class      km3db.NetworkClass
	cookieFile string
}

func newClientEnv(ctx *cli.Context, opts envOptions) (*clientEnv, error) {
	cfg, err := config.Load(config.Options{Path: ctx.GlobalString("config")})
	if err != nil {
		return nil, err
	}
	if u := ctx.GlobalString("url"); u != "" {
		cfg.URL = u
	}
	if ctx.GlobalBool("debug") {
		cfg.Debug = true
	}
	if opts.cookieFile != "" {
		cfg.CookieFile = opts.cookieFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l, err := newLogger(ctx.App.ErrWriter, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Source != "" {
		l.Debug("configuration read from %s", cfg.Source)
	}

	var store credman.Store
	if cfg.Keyring {
		store = newKeyring()
	}
	resolver := km3db.NewResolver(&km3db.ResolverOptions{
		BaseURL:      cfg.URL,
		CookiePath:   cfg.CookieFile,
		Keyring:      store,
		TrustedHosts: trustedHosts(),
		Prompter:     newPrompter(),
		NetworkClass: opts.class,
		HTTPClient:   km3db.NewHTTPClient(cfg.Insecure, DEF_LOGIN_TIMEOUT),
		Logger:       l,
	})
	client, err := km3db.NewClient(&km3db.Options{
		BaseURL:     cfg.URL,
		Credentials: resolver,
		Retry: km3db.RetryConfig{
			MaxRetries:   cfg.MaxRetries,
			AuthDelay:    cfg.AuthDelay,
			NetworkDelay: cfg.NetworkDelay,
		},
		InsecureSkipVerify: cfg.Insecure,
		Timeout:            DEF_HTTP_TIMEOUT,
		Logger:             l,
	})
	if err != nil {
		l.Close()
		return nil, err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	return &clientEnv{
		ctx:      sigCtx,
		cfg:      cfg,
		log:      l,
		resolver: resolver,
		client:   client,
		stop:     stop,
	}, nil
}

// newLogger logs to w, adding the debug log file when one is configured.
func newLogger(w io.Writer, cfg *config.Config) (logger.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	std := logger.NewStandardLogger(log.New(w, "km3db: ", 0))
	std.SetVerbose(cfg.Debug)
	if cfg.DebugLog == "" {
		return std, nil
	}
	fl, err := logger.NewFileLogger(cfg.DebugLog)
	if err != nil {
		return nil, err
	}
	return logger.NewMultiLogger(std, fl), nil
}

// domain is the host the session cookie is issued for.
func (e *clientEnv) domain() string {
	u, err := url.Parse(e.cfg.URL)
	if err != nil {
		return e.cfg.URL
	}
	return u.Hostname()
}

func (e *clientEnv) Close() error {
	e.stop()
	if err := e.log.Close(); err != nil {
		return fmt.Errorf("close logger: %w", err)
	}
	return nil
}
