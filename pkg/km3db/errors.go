package km3db

import "errors"

var (
	// ErrAuthentication is returned when no source yields a session credential,
	// including a login rejected by the server.
	ErrAuthentication = errors.New("authentication failed")

	// ErrInvalidCredential is returned for strings that do not look like a
	// session credential.
	ErrInvalidCredential = errors.New("invalid session credential")

	// ErrInvalidNetworkClass is returned for unknown network class names.
	ErrInvalidNetworkClass = errors.New("invalid network class")

	ErrStreamNotFound  = errors.New("stream not found")
	ErrMissingSelector = errors.New("missing mandatory selector")
	ErrUnknownFormat   = errors.New("format not supported by stream")
	ErrEmptyResult     = errors.New("no data found")
	ErrRequestFailed   = errors.New("request failed")

	// ErrServer wraps error messages returned by the database in a 200 response.
	ErrServer = errors.New("database error")

	ErrMalformedTable = errors.New("malformed table")
)
