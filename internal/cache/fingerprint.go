package cache

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/standardbeagle/lcid/internal/lsp"
	"github.com/standardbeagle/lcid/internal/pathutil"
)

// Fingerprint is the opaque, content-addressed storage key for one
// cacheable request: method, workspace-relative file, content hash,
// canonicalized params, and workspace revision, joined so that two
// fingerprints are equal iff every input was equal.
type Fingerprint struct {
	storageKey string
}

// StorageKey returns the fingerprint's canonical string form, suitable as
// a MemoryLayer/DiskLayer key.
func (f Fingerprint) StorageKey() string { return f.storageKey }

func (f Fingerprint) String() string { return f.storageKey }

// ShortKey is the singleflight coalescing key: the same inputs as a
// Fingerprint minus the content hash, since computing it must not require
// reading the file first.
type ShortKey string

// FingerprintOptions tunes FingerprintBuilder.BuildStorageKey's behavior
// when the target file can't be read.
type FingerprintOptions struct {
	// RequireContent, if true, makes an unreadable file a hard error
	// (ErrUnreadableFile) instead of falling back to a synthetic
	// placeholder content hash.
	RequireContent bool
}

// FingerprintBuilder builds Fingerprints and singleflight ShortKeys from
// a request's method, file, and parameters.
type FingerprintBuilder struct{}

// NewFingerprintBuilder constructs a FingerprintBuilder. It carries no
// state; every input it needs is passed explicitly per call.
func NewFingerprintBuilder() *FingerprintBuilder {
	return &FingerprintBuilder{}
}

// BuildSingleflightKey builds the short in-flight deduplication key. It
// never touches disk, so it can run synchronously before the full
// fingerprint (which requires reading file content) is built.
func (b *FingerprintBuilder) BuildSingleflightKey(method lsp.Method, workspaceRoot, filePath, params, revision string) ShortKey {
	relPath := pathutil.ToRelative(filePath, workspaceRoot)
	canon, err := CanonicalizeParams(params)
	if err != nil {
		canon = params
	}
	return ShortKey(fmt.Sprintf("%s:%s:%s:%s", method, relPath, canon, revision))
}

// BuildStorageKey builds the full content-addressed Fingerprint used as a
// cache storage key. It reads filePath's content on disk for the hash; if
// the file is unreadable, it falls back to a synthetic placeholder hash
// derived from params unless opts.RequireContent is set.
func (b *FingerprintBuilder) BuildStorageKey(method lsp.Method, workspaceRoot, filePath, params, revision string, opts FingerprintOptions) (Fingerprint, error) {
	relPath := pathutil.ToRelative(filePath, workspaceRoot)

	canon, err := CanonicalizeParams(params)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %v", ErrMalformedParams, err)
	}

	contentHash, err := b.hashFileContent(filePath, canon, opts)
	if err != nil {
		return Fingerprint{}, err
	}

	key := fmt.Sprintf("%s:%s:%s:%s:%s", method, relPath, contentHash, canon, revision)
	return Fingerprint{storageKey: key}, nil
}

func (b *FingerprintBuilder) hashFileContent(filePath, canonParams string, opts FingerprintOptions) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if opts.RequireContent {
			return "", fmt.Errorf("%w: %s: %v", ErrUnreadableFile, filePath, err)
		}
		placeholder := fmt.Sprintf("unreadable:%s:%s", filePath, canonParams)
		return hashString(placeholder), nil
	}
	return hashBytes(data), nil
}

func hashBytes(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}

func hashString(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// CanonicalizeParams re-encodes a JSON params string with object keys in
// a stable sorted order, so that two semantically identical parameter
// sets never produce different fingerprints due to map iteration order.
// encoding/json already sorts map[string]interface{} keys on Marshal; the
// round trip through Unmarshal normalizes whitespace and key order.
func CanonicalizeParams(params string) (string, error) {
	if params == "" {
		return "{}", nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(params), &v); err != nil {
		return "", err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
