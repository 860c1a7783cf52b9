package oracle

import "errors"

// Sentinel errors for oracle operations.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidTarget indicates the datasource edit URL could not be parsed.
	ErrInvalidTarget = errors.New("oracle: invalid datasource edit URL")

	// ErrLookup indicates the datasource could not be fetched.
	ErrLookup = errors.New("oracle: datasource lookup failed")

	// ErrReconfigure indicates a datasource write was rejected or never
	// reached the server.
	ErrReconfigure = errors.New("oracle: datasource update failed")

	// ErrNoDatasource indicates a write was attempted before Lookup or Adopt.
	ErrNoDatasource = errors.New("oracle: no datasource config loaded")
)
