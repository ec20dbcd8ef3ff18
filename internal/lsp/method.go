// Package lsp defines the request/response shapes CacheMiddleware caches
// and the DocumentProvider contract it bypasses the cache against.
package lsp

// Method names one of the LSP operations the daemon knows how to cache,
// mirroring the original's `LspMethod` enum and its daemon request
// variants.
type Method string

const (
	MethodHover            Method = "hover"
	MethodDefinition       Method = "definition"
	MethodReferences       Method = "references"
	MethodImplementations  Method = "implementations"
	MethodTypeDefinition   Method = "typeDefinition"
	MethodDocumentSymbols  Method = "documentSymbols"
	MethodWorkspaceSymbols Method = "workspaceSymbols"
	MethodCallHierarchy    Method = "callHierarchy"
	MethodCompletion       Method = "completion"
)

// Cacheable lists every method CacheMiddleware and the PolicyRegistry know
// about. A request classifying to anything outside this set is always
// forwarded directly to the upstream handler.
func Cacheable() []Method {
	return []Method{
		MethodHover,
		MethodDefinition,
		MethodReferences,
		MethodImplementations,
		MethodTypeDefinition,
		MethodDocumentSymbols,
		MethodWorkspaceSymbols,
		MethodCallHierarchy,
		MethodCompletion,
	}
}
