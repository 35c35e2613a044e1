package km3db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/km3py/km3db/common"
)

// RetryConfig holds the retry budget and the per-failure backoff.
type RetryConfig struct {
	MaxRetries   int           // Retries after the first attempt
	AuthDelay    time.Duration // Wait after a 403 before re-resolving the credential
	NetworkDelay time.Duration // Wait after a connection-level failure
}

// DefaultRetryConfig returns 10 retries with 1s auth and 30s network backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   common.DefaultMaxRetries,
		AuthDelay:    common.DefaultAuthDelay,
		NetworkDelay: common.DefaultNetworkDelay,
	}
}

// RetryState tracks the retries of one request.
type RetryState struct {
	Attempts     int           // Retries made so far
	LastError    error         // Most recent error encountered
	TotalDelayed time.Duration // Cumulative time spent waiting between retries
}

// ErrorCategory classifies request errors for retry decisions.
type ErrorCategory int

const (
	ErrCategoryFatal     ErrorCategory = iota // Not retried, request fails
	ErrCategoryAuth                           // 403: credential is stale, re-resolve
	ErrCategoryNetwork                        // Transport failure, retry later
	ErrCategoryTruncated                      // Short body, use what arrived
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryAuth:
		return "authorization"
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryTruncated:
		return "truncated"
	default:
		return "fatal"
	}
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "unexpected response: " + e.Status
}

// TruncatedError is a response body that ended before its declared length.
// Partial holds the bytes that did arrive.
type TruncatedError struct {
	Partial []byte
	Err     error
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated response after %d bytes: %v", len(e.Partial), e.Err)
}

func (e *TruncatedError) Unwrap() error { return e.Err }

// ClassifyError determines how a request error should be handled.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryFatal
	}

	// The caller gave up. A deadline is left to the transport checks below:
	// it is also how per-request timeouts surface.
	if errors.Is(err, context.Canceled) {
		return ErrCategoryFatal
	}

	var truncated *TruncatedError
	if errors.As(err, &truncated) {
		return ErrCategoryTruncated
	}

	var status *StatusError
	if errors.As(err, &status) {
		if status.Code == http.StatusForbidden {
			return ErrCategoryAuth
		}
		return ErrCategoryFatal
	}

	// Anything the transport reports against the URL: refused, reset,
	// remote disconnect, TLS and DNS failures.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrCategoryNetwork
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrCategoryNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrCategoryNetwork
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED,
			syscall.EPIPE, syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return ErrCategoryNetwork
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"timeout",
		"no such host",
		"network is unreachable",
	} {
		if strings.Contains(errStr, pattern) {
			return ErrCategoryNetwork
		}
	}

	return ErrCategoryFatal
}

// Delay returns the wait before retrying after a failure of category c.
func (c *RetryConfig) Delay(category ErrorCategory) time.Duration {
	switch category {
	case ErrCategoryAuth:
		return c.AuthDelay
	case ErrCategoryNetwork:
		return c.NetworkDelay
	default:
		return 0
	}
}

// ShouldRetry reports whether err warrants another attempt.
func (c *RetryConfig) ShouldRetry(state *RetryState, err error) bool {
	switch ClassifyError(err) {
	case ErrCategoryAuth, ErrCategoryNetwork:
		return state.Attempts < c.MaxRetries
	default:
		return false
	}
}

func waitFor(ctx context.Context, state *RetryState, delay time.Duration, after func(time.Duration) <-chan time.Time) error {
	if delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-after(delay):
		state.TotalDelayed += delay
		return nil
	}
}
