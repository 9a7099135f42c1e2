// Package radarerr defines the sentinel error classes used across the
// ingest pipeline so callers can classify failures with errors.Is/As
// instead of matching on strings.
package radarerr

import "errors"

var (
	// ErrTransient marks a network failure that the retry wrapper may
	// retry: timeouts, 5xx responses, connection resets.
	ErrTransient = errors.New("transient network error")

	// ErrPermanent marks a failure that retrying will not fix: 404s,
	// an unparseable directory listing, or HTML returned where a
	// binary payload was expected.
	ErrPermanent = errors.New("permanent network error")

	// ErrDecode marks a failure decoding a provider's binary format.
	ErrDecode = errors.New("decode failure")

	// ErrOutageGate marks a core-quorum failure: too few core sources
	// are AVAILABLE to proceed.
	ErrOutageGate = errors.New("outage gate failure")

	// ErrCacheCorrupt marks a cache entry that failed to load or whose
	// version does not match; treated as a cache miss, never fatal.
	ErrCacheCorrupt = errors.New("cache corruption")

	// ErrConfig marks an invalid configuration: bad source name,
	// invalid grid dimensions, malformed time range.
	ErrConfig = errors.New("configuration error")

	// ErrSecurity marks a security-relevant rejection: path traversal,
	// an oversized cache payload, or a source name that fails the
	// validator.
	ErrSecurity = errors.New("security violation")
)
