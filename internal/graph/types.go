// Package graph holds the symbol-graph data model (SymbolState nodes and
// typed Edge records) and the adapter that derives them from LSP
// responses.
package graph

// EdgeRelation names the kind of relationship an Edge records.
type EdgeRelation string

const (
	RelationCalls        EdgeRelation = "calls"
	RelationReferences   EdgeRelation = "references"
	RelationImplements   EdgeRelation = "implements"
)

// NoneUID is the sentinel endpoint recorded when an authoritative LSP
// answer was empty (no callers, no references, no implementations).
const NoneUID = "none"

// SymbolState is one node of the symbol graph: a specific symbol as
// observed at a specific content version.
type SymbolState struct {
	SymbolUID     string
	FilePath      string
	Language      string
	Name          string
	FQN           string
	Kind          string
	Signature     string
	Visibility    string
	DefStartLine  int
	DefStartChar  int
	DefEndLine    int
	DefEndChar    int
	IsDefinition  bool
	Documentation string
	Metadata      string
}

// Edge is one typed relationship between two symbols, or a sentinel
// recording that an authoritative empty answer was observed.
type Edge struct {
	Relation        EdgeRelation
	SourceSymbolUID string
	TargetSymbolUID string
	FilePath        string
	StartLine       int
	StartChar       int
	Confidence      float64
	Language        string
	Metadata        string
}

// IsSentinel reports whether e records an authoritative empty answer
// rather than a concrete relationship.
func (e Edge) IsSentinel() bool {
	return e.SourceSymbolUID == NoneUID || e.TargetSymbolUID == NoneUID
}

// sentinelEdge builds the outgoing-empty sentinel used when a references or
// implementations query authoritatively returns nothing: the queried symbol
// is the source, "none" is the target (e.g. `Display —Implements→ "none"`).
// callHierarchy's empty_incoming case is the other direction and is built
// inline where it's used instead of through this helper.
func sentinelEdge(relation EdgeRelation, sourceUID, language, metadata string) Edge {
	return Edge{
		Relation:        relation,
		SourceSymbolUID: sourceUID,
		TargetSymbolUID: NoneUID,
		Confidence:      1.0,
		Language:        language,
		Metadata:        metadata,
	}
}

// Location is a file position as reported by an upstream LSP response:
// 0-based line/character, as LSP always reports them.
type Location struct {
	URI       string
	StartLine int
	StartChar int
	EndLine   int
	EndChar   int
}

// CallHierarchyItem is one node of an upstream callHierarchy response.
type CallHierarchyItem struct {
	Name      string
	Kind      string
	URI       string
	StartLine int
	StartChar int
	EndLine   int
	EndChar   int
}

// CallHierarchyResult is the full upstream callHierarchy response for one
// anchor symbol.
type CallHierarchyResult struct {
	Item     CallHierarchyItem
	Incoming []CallHierarchyItem
	Outgoing []CallHierarchyItem
}

// ExtractedSymbol is a symbol observed by the indexer outside of any LSP
// round-trip (e.g. a batch tree-sitter sweep), fed through the same UID
// rules as LSP-derived symbols via StoreExtractedSymbols.
type ExtractedSymbol struct {
	FilePath   string
	Language   string
	Name       string
	Kind       string
	StartLine  int
	StartChar  int
	EndLine    int
	EndChar    int
	Signature  string
	Visibility string
}
