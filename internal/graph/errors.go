package graph

import "errors"

var (
	// ErrUnreadableFile names a file a symbol's content hash cannot be
	// computed from. LspDatabaseAdapter does not return it: an unreadable
	// file always gets a placeholder content hash.
	ErrUnreadableFile = errors.New("graph: file unreadable for content hash")

	// ErrMalformedParams names an LSP response missing data conversion
	// cannot proceed without (e.g. a location with an empty URI that every
	// location in the batch shares). LspDatabaseAdapter does not return it.
	ErrMalformedParams = errors.New("graph: malformed upstream response")

	// ErrSymbolUnresolved is returned by a SymbolResolver when no symbol
	// could be identified at the given position by any fallback.
	ErrSymbolUnresolved = errors.New("graph: no symbol resolved at position")
)
