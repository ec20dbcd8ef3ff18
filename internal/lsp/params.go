package lsp

import (
	"encoding/json"
	"fmt"
)

// ErrUnsupportedRequest is returned by ExtractFileAndParams for a request
// variant CacheMiddleware has no extraction rule for; such requests are
// forwarded directly to the upstream handler without caching.
var ErrUnsupportedRequest = fmt.Errorf("lsp: unsupported request type for parameter extraction")

// ExtractFileAndParams pulls the file path and a deterministic parameter
// encoding out of a request, the inputs FingerprintBuilder hashes into a
// Fingerprint. workspaceRoot is used as the file path for
// WorkspaceSymbolsRequest, which has no single owning file.
func ExtractFileAndParams(req Request, workspaceRoot string) (filePath string, params string, err error) {
	switch r := req.(type) {
	case HoverRequest:
		return r.FilePath, encodePosition(r.Position), nil
	case DefinitionRequest:
		return r.FilePath, encodePosition(r.Position), nil
	case ReferencesRequest:
		return r.FilePath, encodeReferencesParams(r.Position, r.IncludeDeclaration), nil
	case ImplementationsRequest:
		return r.FilePath, encodePosition(r.Position), nil
	case TypeDefinitionRequest:
		return r.FilePath, encodePosition(r.Position), nil
	case CallHierarchyRequest:
		return r.FilePath, encodePosition(r.Position), nil
	case CompletionRequest:
		return r.FilePath, encodePosition(r.Position), nil
	case DocumentSymbolsRequest:
		return r.FilePath, "{}", nil
	case WorkspaceSymbolsRequest:
		return workspaceRoot, encodeQueryParams(r.Query), nil
	default:
		return "", "", ErrUnsupportedRequest
	}
}

func encodePosition(pos Position) string {
	b, _ := json.Marshal(struct {
		Position Position `json:"position"`
	}{pos})
	return string(b)
}

func encodeReferencesParams(pos Position, includeDeclaration bool) string {
	b, _ := json.Marshal(struct {
		Position Position `json:"position"`
		Context  struct {
			IncludeDeclaration bool `json:"includeDeclaration"`
		} `json:"context"`
	}{
		Position: pos,
		Context: struct {
			IncludeDeclaration bool `json:"includeDeclaration"`
		}{includeDeclaration},
	})
	return string(b)
}

func encodeQueryParams(query string) string {
	b, _ := json.Marshal(struct {
		Query string `json:"query"`
	}{query})
	return string(b)
}
