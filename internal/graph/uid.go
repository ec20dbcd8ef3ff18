package graph

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/lcid/internal/pathutil"
)

// SymbolUidGenerator computes the deterministic symbol_uid primary key:
// <workspace-relative-file-or-EXTERNAL/UNRESOLVED>:<name>:<content-hash>:<line>.
type SymbolUidGenerator struct{}

// NewSymbolUidGenerator builds a generator. It carries no state; the
// struct exists so the adapter can depend on an interface-shaped value
// the way it depends on a resolver.
func NewSymbolUidGenerator() *SymbolUidGenerator {
	return &SymbolUidGenerator{}
}

// Classification describes why a UID was given a non-path prefix.
type Classification string

const (
	ClassificationResolved   Classification = ""
	ClassificationExternal   Classification = "EXTERNAL"
	ClassificationUnresolved Classification = "UNRESOLVED"
)

// Generate computes a symbol_uid. fileContent is the file's bytes at
// observation time; when nil (file unreadable), a deterministic
// placeholder derived from (name, line, column) is hashed instead, and
// class should be ClassificationExternal or ClassificationUnresolved per
// the caller's reason for the miss.
func (g *SymbolUidGenerator) Generate(workspaceRoot, filePath string, fileContent []byte, name string, line, column int, class Classification) string {
	pathComponent := pathutil.ToRelative(filePath, workspaceRoot)
	if class != ClassificationResolved {
		pathComponent = string(class)
	}

	var contentHash uint64
	if fileContent != nil {
		contentHash = xxhash.Sum64(fileContent)
	} else {
		placeholder := fmt.Sprintf("placeholder:%s:%d:%d", name, line, column)
		contentHash = xxhash.Sum64String(placeholder)
	}

	return fmt.Sprintf("%s:%s:%016x:%d", pathComponent, name, contentHash, line)
}

// NormalizePath returns the file path a SymbolState derived from uid
// should carry, per the rule that EXTERNAL/UNRESOLVED-prefixed UIDs are
// never rewritten to a workspace-relative path: fallback is returned
// unchanged for those, and the UID's own path component otherwise.
func (g *SymbolUidGenerator) NormalizePath(uid, fallback string) string {
	pathComponent, _, ok := strings.Cut(uid, ":")
	if !ok || pathComponent == "" {
		return fallback
	}
	if strings.HasPrefix(pathComponent, string(ClassificationExternal)) ||
		strings.HasPrefix(pathComponent, string(ClassificationUnresolved)) {
		return fallback
	}
	return pathComponent
}
