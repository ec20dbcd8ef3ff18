package lsp

import "github.com/google/uuid"

// Position is a zero-based line/column pair, as LSP defines it.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"character"`
}

// Request is the common surface CacheMiddleware needs from any daemon
// request variant: a method to classify policy against, and a
// correlation id to rewrite on a cache-served response.
type Request interface {
	Method() Method
	RequestID() uuid.UUID
}

type baseRequest struct {
	ID uuid.UUID `json:"request_id"`
}

func (b baseRequest) RequestID() uuid.UUID { return b.ID }

// HoverRequest asks for hover information at a cursor position.
type HoverRequest struct {
	baseRequest
	FilePath string `json:"file_path"`
	Position Position `json:"position"`
}

func (HoverRequest) Method() Method { return MethodHover }

// NewHoverRequest builds a HoverRequest with a fresh correlation id.
func NewHoverRequest(filePath string, line, column int) HoverRequest {
	return HoverRequest{baseRequest{uuid.New()}, filePath, Position{line, column}}
}

// DefinitionRequest asks for the definition site(s) of the symbol under
// the cursor.
type DefinitionRequest struct {
	baseRequest
	FilePath string   `json:"file_path"`
	Position Position `json:"position"`
}

func (DefinitionRequest) Method() Method { return MethodDefinition }

func NewDefinitionRequest(filePath string, line, column int) DefinitionRequest {
	return DefinitionRequest{baseRequest{uuid.New()}, filePath, Position{line, column}}
}

// ReferencesRequest asks for every reference to the symbol under the
// cursor, optionally including its declaration.
type ReferencesRequest struct {
	baseRequest
	FilePath           string   `json:"file_path"`
	Position           Position `json:"position"`
	IncludeDeclaration bool     `json:"include_declaration"`
}

func (ReferencesRequest) Method() Method { return MethodReferences }

func NewReferencesRequest(filePath string, line, column int, includeDeclaration bool) ReferencesRequest {
	return ReferencesRequest{baseRequest{uuid.New()}, filePath, Position{line, column}, includeDeclaration}
}

// ImplementationsRequest asks for the implementations of the interface
// or trait under the cursor.
type ImplementationsRequest struct {
	baseRequest
	FilePath string   `json:"file_path"`
	Position Position `json:"position"`
}

func (ImplementationsRequest) Method() Method { return MethodImplementations }

func NewImplementationsRequest(filePath string, line, column int) ImplementationsRequest {
	return ImplementationsRequest{baseRequest{uuid.New()}, filePath, Position{line, column}}
}

// TypeDefinitionRequest asks for the type definition of the symbol under
// the cursor.
type TypeDefinitionRequest struct {
	baseRequest
	FilePath string   `json:"file_path"`
	Position Position `json:"position"`
}

func (TypeDefinitionRequest) Method() Method { return MethodTypeDefinition }

func NewTypeDefinitionRequest(filePath string, line, column int) TypeDefinitionRequest {
	return TypeDefinitionRequest{baseRequest{uuid.New()}, filePath, Position{line, column}}
}

// DocumentSymbolsRequest asks for the outline of an entire file.
type DocumentSymbolsRequest struct {
	baseRequest
	FilePath string `json:"file_path"`
}

func (DocumentSymbolsRequest) Method() Method { return MethodDocumentSymbols }

func NewDocumentSymbolsRequest(filePath string) DocumentSymbolsRequest {
	return DocumentSymbolsRequest{baseRequest{uuid.New()}, filePath}
}

// WorkspaceSymbolsRequest searches for symbols by name across a
// workspace. It has no single owning file, so FingerprintBuilder keys it
// on the workspace root instead.
type WorkspaceSymbolsRequest struct {
	baseRequest
	Query string `json:"query"`
}

func (WorkspaceSymbolsRequest) Method() Method { return MethodWorkspaceSymbols }

func NewWorkspaceSymbolsRequest(query string) WorkspaceSymbolsRequest {
	return WorkspaceSymbolsRequest{baseRequest{uuid.New()}, query}
}

// CallHierarchyRequest asks for the incoming and outgoing call edges of
// the symbol under the cursor.
type CallHierarchyRequest struct {
	baseRequest
	FilePath string   `json:"file_path"`
	Position Position `json:"position"`
}

func (CallHierarchyRequest) Method() Method { return MethodCallHierarchy }

func NewCallHierarchyRequest(filePath string, line, column int) CallHierarchyRequest {
	return CallHierarchyRequest{baseRequest{uuid.New()}, filePath, Position{line, column}}
}

// CompletionRequest asks for completion candidates at a cursor position.
// Caching it is opt-in (see PolicyRegistry's default for "completion").
type CompletionRequest struct {
	baseRequest
	FilePath string   `json:"file_path"`
	Position Position `json:"position"`
}

func (CompletionRequest) Method() Method { return MethodCompletion }

func NewCompletionRequest(filePath string, line, column int) CompletionRequest {
	return CompletionRequest{baseRequest{uuid.New()}, filePath, Position{line, column}}
}
