package cache

import "errors"

// Sentinel errors checked with errors.Is across the cache package and by
// its callers (CacheMiddleware, WorkspaceCacheRouter).
var (
	// ErrUnreadableFile is returned by FingerprintBuilder.BuildStorageKey
	// when the target file can't be read and the caller opted out of the
	// synthetic-placeholder fallback via FingerprintOptions.RequireContent.
	ErrUnreadableFile = errors.New("cache: file unreadable for fingerprint")

	// ErrMalformedParams is returned when request parameters can't be
	// serialized into a stable, field-sorted form.
	ErrMalformedParams = errors.New("cache: malformed request parameters")

	// ErrCacheMiss indicates no value was found for a key in a given
	// layer. It is not surfaced outside the cache package; callers see a
	// plain (nil, false, nil) instead.
	ErrCacheMiss = errors.New("cache: miss")

	// ErrSingleflightCancelled is returned to a caller whose context was
	// cancelled or timed out while awaiting an in-flight call. A shared
	// call whose work was cancelled is not reported with it: every caller
	// receives whatever value and error that call returned.
	ErrSingleflightCancelled = errors.New("cache: singleflight call cancelled")

	// ErrPolicyDisabled indicates the method is known but caching is
	// turned off for it.
	ErrPolicyDisabled = errors.New("cache: policy disabled for method")
)
