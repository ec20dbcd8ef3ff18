package lsp

import "github.com/google/uuid"

// Response is the common surface CacheMiddleware needs from any daemon
// response variant: its correlation id, and the ability to stamp a new
// one when a cached response is replayed for a different caller.
//
// The original implementation's `adapt_response_request_id` pattern-matches
// every `DaemonResponse` variant and rewrites its `request_id` field in
// place; Go expresses the same rewrite as returning an updated copy.
type Response interface {
	Method() Method
	RequestID() uuid.UUID
	WithRequestID(id uuid.UUID) Response
}

type baseResponse struct {
	ID uuid.UUID `json:"request_id"`
}

func (b baseResponse) RequestID() uuid.UUID { return b.ID }

// HoverResponse carries optional hover text; nil Content means the
// upstream server had nothing to say at that position.
type HoverResponse struct {
	baseResponse
	Content *string `json:"content,omitempty"`
}

func (HoverResponse) Method() Method { return MethodHover }
func (r HoverResponse) WithRequestID(id uuid.UUID) Response {
	r.ID = id
	return r
}

// Location is a file + range pair, as LSP defines it.
type Location struct {
	FilePath string   `json:"file_path"`
	Start    Position `json:"start"`
	End      Position `json:"end"`
}

// DefinitionResponse carries zero or more definition locations.
type DefinitionResponse struct {
	baseResponse
	Locations []Location `json:"locations"`
}

func (DefinitionResponse) Method() Method { return MethodDefinition }
func (r DefinitionResponse) WithRequestID(id uuid.UUID) Response {
	r.ID = id
	return r
}

// ReferencesResponse carries zero or more reference locations.
type ReferencesResponse struct {
	baseResponse
	Locations []Location `json:"locations"`
}

func (ReferencesResponse) Method() Method { return MethodReferences }
func (r ReferencesResponse) WithRequestID(id uuid.UUID) Response {
	r.ID = id
	return r
}

// ImplementationsResponse carries zero or more implementation locations.
type ImplementationsResponse struct {
	baseResponse
	Locations []Location `json:"locations"`
}

func (ImplementationsResponse) Method() Method { return MethodImplementations }
func (r ImplementationsResponse) WithRequestID(id uuid.UUID) Response {
	r.ID = id
	return r
}

// TypeDefinitionResponse carries zero or more type-definition locations.
type TypeDefinitionResponse struct {
	baseResponse
	Locations []Location `json:"locations"`
}

func (TypeDefinitionResponse) Method() Method { return MethodTypeDefinition }
func (r TypeDefinitionResponse) WithRequestID(id uuid.UUID) Response {
	r.ID = id
	return r
}

// DocumentSymbol is one entry in a DocumentSymbolsResponse, recursively
// nested the way LSP's hierarchical document symbols are.
type DocumentSymbol struct {
	Name     string           `json:"name"`
	Kind     string           `json:"kind"`
	Range    struct{ Start, End Position } `json:"range"`
	Children []DocumentSymbol `json:"children,omitempty"`
}

// DocumentSymbolsResponse carries a file's symbol outline.
type DocumentSymbolsResponse struct {
	baseResponse
	Symbols []DocumentSymbol `json:"symbols"`
}

func (DocumentSymbolsResponse) Method() Method { return MethodDocumentSymbols }
func (r DocumentSymbolsResponse) WithRequestID(id uuid.UUID) Response {
	r.ID = id
	return r
}

// WorkspaceSymbol is one match from a workspace-wide symbol search.
type WorkspaceSymbol struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	FilePath string   `json:"file_path"`
	Position Position `json:"position"`
}

// WorkspaceSymbolsResponse carries workspace-wide symbol search results.
type WorkspaceSymbolsResponse struct {
	baseResponse
	Symbols []WorkspaceSymbol `json:"symbols"`
}

func (WorkspaceSymbolsResponse) Method() Method { return MethodWorkspaceSymbols }
func (r WorkspaceSymbolsResponse) WithRequestID(id uuid.UUID) Response {
	r.ID = id
	return r
}

// CallHierarchyItem is one node (caller or callee) in a call hierarchy
// result, as LSP's CallHierarchyItem defines it.
type CallHierarchyItem struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	URI      string   `json:"uri"`
	FilePath string   `json:"file_path"`
	Range    struct{ Start, End Position } `json:"range"`
}

// CallHierarchyResponse carries the incoming and outgoing call edges for
// a symbol. Either slice may legitimately be empty — that is recorded as
// an authoritative empty result downstream, not a cache miss.
type CallHierarchyResponse struct {
	baseResponse
	Incoming []CallHierarchyItem `json:"incoming"`
	Outgoing []CallHierarchyItem `json:"outgoing"`
}

func (CallHierarchyResponse) Method() Method { return MethodCallHierarchy }
func (r CallHierarchyResponse) WithRequestID(id uuid.UUID) Response {
	r.ID = id
	return r
}

// CompletionItem is one completion candidate.
type CompletionItem struct {
	Label  string `json:"label"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// CompletionResponse carries completion candidates.
type CompletionResponse struct {
	baseResponse
	Items []CompletionItem `json:"items"`
}

func (CompletionResponse) Method() Method { return MethodCompletion }
func (r CompletionResponse) WithRequestID(id uuid.UUID) Response {
	r.ID = id
	return r
}

// ErrorResponse carries an upstream failure. It has no correlation id to
// rewrite and is never cached.
type ErrorResponse struct {
	Message string `json:"message"`
}

func (ErrorResponse) Method() Method           { return "" }
func (ErrorResponse) RequestID() uuid.UUID     { return uuid.Nil }
func (r ErrorResponse) WithRequestID(uuid.UUID) Response { return r }
