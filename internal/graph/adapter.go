package graph

import (
	"os"
	"strconv"
	"strings"

	"github.com/standardbeagle/lcid/internal/logging"
	"github.com/standardbeagle/lcid/internal/pathutil"
)

// LspDatabaseAdapter converts upstream LSP responses (callHierarchy,
// references, definitions, implementations) into SymbolState/Edge
// batches ready for DatabaseBackend.StoreSymbols/StoreEdges.
type LspDatabaseAdapter struct {
	uids     *SymbolUidGenerator
	resolver SymbolResolver
	logger   *logging.Daemon
}

// NewLspDatabaseAdapter builds an adapter. resolver may be nil, in which
// case positions are never snapped: call hierarchy symbols take their
// names and kinds from the upstream items, and location-only responses
// get synthetic pos_<line>_<col> names.
func NewLspDatabaseAdapter(resolver SymbolResolver, logger *logging.Daemon) *LspDatabaseAdapter {
	return &LspDatabaseAdapter{
		uids:     NewSymbolUidGenerator(),
		resolver: resolver,
		logger:   logger,
	}
}

func uriToPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

func readFileOrNil(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return data
}

// ConvertCallHierarchy converts one anchored callHierarchy response into
// the main symbol plus its callers and callees, with sentinel edges for
// an authoritatively empty incoming or outgoing set.
func (a *LspDatabaseAdapter) ConvertCallHierarchy(result CallHierarchyResult, requestFilePath, language, workspaceRoot string) ([]SymbolState, []Edge) {
	var symbols []SymbolState
	var edges []Edge
	var mainUID string

	if isSkippableName(result.Item.Name) {
		a.logf("debug", "skipping main call hierarchy item with unresolved name uri=%s", result.Item.URI)
	} else if sym, ok := a.itemToSymbol(result.Item, language, workspaceRoot, true); ok {
		mainUID = sym.SymbolUID
		symbols = append(symbols, sym)
	}

	if mainUID != "" {
		if len(result.Incoming) == 0 {
			edges = append(edges, Edge{
				Relation:        RelationCalls,
				SourceSymbolUID: NoneUID,
				TargetSymbolUID: mainUID,
				Confidence:      1.0,
				Language:        language,
				Metadata:        "lsp_call_hierarchy_empty_incoming",
			})
		} else {
			for _, incoming := range result.Incoming {
				caller, ok := a.itemToSymbol(incoming, language, workspaceRoot, false)
				if !ok {
					continue
				}
				symbols = append(symbols, caller)
				edges = append(edges, Edge{
					Relation:        RelationCalls,
					SourceSymbolUID: caller.SymbolUID,
					TargetSymbolUID: mainUID,
					FilePath:        caller.FilePath,
					StartLine:       max1(caller.DefStartLine + 1),
					StartChar:       caller.DefStartChar,
					Confidence:      1.0,
					Language:        language,
					Metadata:        "lsp_call_hierarchy_incoming",
				})
			}
		}

		if len(result.Outgoing) == 0 {
			edges = append(edges, Edge{
				Relation:        RelationCalls,
				SourceSymbolUID: mainUID,
				TargetSymbolUID: NoneUID,
				Confidence:      1.0,
				Language:        language,
				Metadata:        "lsp_call_hierarchy_empty_outgoing",
			})
		} else {
			sourceFilePath := pathutil.ToRelative(requestFilePath, workspaceRoot)
			for _, outgoing := range result.Outgoing {
				callee, ok := a.itemToSymbol(outgoing, language, workspaceRoot, false)
				if !ok {
					continue
				}
				symbols = append(symbols, callee)
				edges = append(edges, Edge{
					Relation:        RelationCalls,
					SourceSymbolUID: mainUID,
					TargetSymbolUID: callee.SymbolUID,
					FilePath:        sourceFilePath,
					StartLine:       max1(callee.DefStartLine + 1),
					StartChar:       callee.DefStartChar,
					Confidence:      1.0,
					Language:        language,
					Metadata:        "lsp_call_hierarchy_outgoing",
				})
			}
		}
	}

	return symbols, edges
}

func isSkippableName(name string) bool {
	return name == "" || name == "unknown"
}

func max1(line int) int {
	if line < 1 {
		return 1
	}
	return line
}

func (a *LspDatabaseAdapter) itemToSymbol(item CallHierarchyItem, language, workspaceRoot string, isDefinition bool) (SymbolState, bool) {
	if isSkippableName(item.Name) {
		return SymbolState{}, false
	}

	filePath := uriToPath(item.URI)
	content := readFileOrNil(filePath)
	class := ClassificationResolved
	if content == nil {
		class = ClassificationUnresolved
	}
	lineOneBased := item.StartLine + 1
	uid := a.uids.Generate(workspaceRoot, filePath, content, item.Name, lineOneBased, item.StartChar, class)

	relativePath := a.uids.NormalizePath(uid, pathutil.ToRelative(filePath, workspaceRoot))

	return SymbolState{
		SymbolUID:    uid,
		FilePath:     relativePath,
		Language:     language,
		Name:         item.Name,
		Kind:         parseLspSymbolKind(item.Kind),
		DefStartLine: item.StartLine,
		DefStartChar: item.StartChar,
		DefEndLine:   item.EndLine,
		DefEndChar:   item.EndChar,
		IsDefinition: isDefinition,
		Metadata:     "lsp_source_uri:" + item.URI,
	}, true
}

func parseLspSymbolKind(kind string) string {
	switch strings.ToLower(kind) {
	case "1", "function":
		return "function"
	case "2", "method":
		return "method"
	case "3", "constructor":
		return "constructor"
	case "5", "class":
		return "class"
	case "6", "interface":
		return "interface"
	case "8", "field":
		return "field"
	case "9", "enum":
		return "enum"
	case "12", "variable":
		return "variable"
	case "23", "struct":
		return "struct"
	default:
		return "unknown"
	}
}

// ConvertReferences resolves the target symbol and every reference
// location into a deduplicated set of References edges, filtering Rust
// trait-bound/trait-impl-header noise, and storing a sentinel edge if
// every location was filtered or none were given.
func (a *LspDatabaseAdapter) ConvertReferences(locations []Location, targetFile string, targetLine, targetChar int, language, workspaceRoot string) ([]SymbolState, []Edge) {
	symbolsByUID := make(map[string]SymbolState)
	seenPairs := make(map[[2]string]bool)
	var edges []Edge

	target, ok := a.resolveDetails(targetFile, targetLine, targetChar, language, workspaceRoot)
	if !ok {
		return nil, nil
	}
	symbolsByUID[target.SymbolUID] = target

	isRust := strings.EqualFold(language, "rust")

	for _, loc := range locations {
		if loc.URI == "" {
			a.logf("warn", "skipping reference with empty URI")
			continue
		}
		refFile := uriToPath(loc.URI)

		if isRust && a.resolver != nil {
			ctx, err := a.resolver.ClassifyRustReferenceContext(refFile, loc.StartLine, loc.StartChar)
			if err == nil {
				if ctx == ContextTraitBound || ctx == ContextTraitImplTrait {
					a.logf("debug", "skipping trait reference context=%s at %s:%d:%d", ctx, refFile, loc.StartLine, loc.StartChar)
					continue
				}
			} else {
				a.logf("warn", "failed to analyze rust reference context at %s:%d:%d: %v", refFile, loc.StartLine, loc.StartChar, err)
			}
		}

		if loc.StartLine == 0 {
			a.logf("warn", "LSP reference returned line=0 for %s, normalizing to 1", refFile)
		}

		source, ok := a.resolveDetails(refFile, loc.StartLine, loc.StartChar, language, workspaceRoot)
		if !ok {
			a.logf("warn", "failed to resolve source symbol at %s:%d:%d", refFile, loc.StartLine, loc.StartChar)
			continue
		}
		symbolsByUID[source.SymbolUID] = source

		pair := [2]string{source.SymbolUID, target.SymbolUID}
		if seenPairs[pair] {
			continue
		}
		seenPairs[pair] = true

		edges = append(edges, Edge{
			Relation:        RelationReferences,
			SourceSymbolUID: source.SymbolUID,
			TargetSymbolUID: target.SymbolUID,
			FilePath:        source.FilePath,
			StartLine:       max1(source.DefStartLine + 1),
			StartChar:       source.DefStartChar,
			Confidence:      1.0,
			Language:        language,
			Metadata:        "lsp_references",
		})
	}

	if len(edges) == 0 {
		a.logf("debug", "no concrete references found for %s, storing sentinel", target.SymbolUID)
		edges = append(edges, sentinelEdge(RelationReferences, target.SymbolUID, language, "lsp_references_empty"))
	}

	symbols := make([]SymbolState, 0, len(symbolsByUID))
	for _, s := range symbolsByUID {
		symbols = append(symbols, s)
	}
	return symbols, edges
}

// ConvertDefinitions resolves the source position and each definition
// location into References edges recording "source is defined by
// target", mirroring the original's reuse of the References relation
// for go-to-definition (there is no dedicated Defines relation).
func (a *LspDatabaseAdapter) ConvertDefinitions(locations []Location, sourceFile string, sourceLine, sourceChar int, language, workspaceRoot string) []Edge {
	source, ok := a.resolveDetails(sourceFile, sourceLine, sourceChar, language, workspaceRoot)
	if !ok {
		return nil
	}
	sourceFilePath := pathutil.ToRelative(sourceFile, workspaceRoot)

	var edges []Edge
	for _, loc := range locations {
		if loc.URI == "" {
			a.logf("warn", "skipping definition with empty URI")
			continue
		}
		defFile := uriToPath(loc.URI)
		if loc.StartLine == 0 {
			a.logf("warn", "LSP definition returned line=0 for %s, normalizing to 1", defFile)
		}

		target, ok := a.resolveDetails(defFile, loc.StartLine, loc.StartChar, language, workspaceRoot)
		if !ok {
			a.logf("warn", "failed to resolve target symbol at %s:%d:%d", defFile, loc.StartLine, loc.StartChar)
			continue
		}

		edges = append(edges, Edge{
			Relation:        RelationReferences,
			SourceSymbolUID: source.SymbolUID,
			TargetSymbolUID: target.SymbolUID,
			FilePath:        sourceFilePath,
			StartLine:       loc.StartLine + 1,
			StartChar:       loc.StartChar,
			Confidence:      1.0,
			Language:        language,
			Metadata:        "lsp_definitions",
		})
	}
	return edges
}

// ConvertImplementations resolves the interface/trait position and each
// implementation location into Implements edges, with a sentinel if none
// were found.
func (a *LspDatabaseAdapter) ConvertImplementations(locations []Location, interfaceFile string, interfaceLine, interfaceChar int, language, workspaceRoot string) []Edge {
	target, ok := a.resolveDetails(interfaceFile, interfaceLine, interfaceChar, language, workspaceRoot)
	if !ok {
		return nil
	}

	var edges []Edge
	for _, loc := range locations {
		if loc.URI == "" {
			a.logf("warn", "skipping implementation with empty URI")
			continue
		}
		implFile := uriToPath(loc.URI)
		if loc.StartLine == 0 {
			a.logf("warn", "LSP implementation returned line=0 for %s, normalizing to 1", implFile)
		}

		source, ok := a.resolveDetails(implFile, loc.StartLine, loc.StartChar, language, workspaceRoot)
		if !ok {
			a.logf("warn", "failed to resolve implementation symbol at %s:%d:%d", implFile, loc.StartLine, loc.StartChar)
			continue
		}

		edges = append(edges, Edge{
			Relation:        RelationImplements,
			SourceSymbolUID: source.SymbolUID,
			TargetSymbolUID: target.SymbolUID,
			FilePath:        pathutil.ToRelative(implFile, workspaceRoot),
			StartLine:       loc.StartLine + 1,
			StartChar:       loc.StartChar,
			Confidence:      1.0,
			Language:        language,
			Metadata:        "lsp_implementations",
		})
	}

	if len(edges) == 0 {
		a.logf("debug", "no concrete implementations found for %s, storing sentinel", target.SymbolUID)
		edges = append(edges, sentinelEdge(RelationImplements, target.SymbolUID, language, "lsp_implementations_empty"))
	}
	return edges
}

// StoreExtractedSymbols converts a batch of indexer-discovered symbols
// (not sourced from any single LSP round-trip) into SymbolState rows
// using the same UID rules, marking each as a definition.
func (a *LspDatabaseAdapter) StoreExtractedSymbols(extracted []ExtractedSymbol, workspaceRoot string) []SymbolState {
	symbols := make([]SymbolState, 0, len(extracted))
	for _, e := range extracted {
		content := readFileOrNil(e.FilePath)
		class := ClassificationResolved
		if content == nil {
			class = ClassificationUnresolved
		}
		uid := a.uids.Generate(workspaceRoot, e.FilePath, content, e.Name, e.StartLine+1, e.StartChar, class)
		relativePath := a.uids.NormalizePath(uid, pathutil.ToRelative(e.FilePath, workspaceRoot))

		symbols = append(symbols, SymbolState{
			SymbolUID:    uid,
			FilePath:     relativePath,
			Language:     e.Language,
			Name:         e.Name,
			Kind:         e.Kind,
			Signature:    e.Signature,
			Visibility:   e.Visibility,
			DefStartLine: e.StartLine,
			DefStartChar: e.StartChar,
			DefEndLine:   e.EndLine,
			DefEndChar:   e.EndChar,
			IsDefinition: true,
		})
	}
	return symbols
}

// resolveDetails snaps a position to a symbol via the resolver (if one
// was wired) and turns it into a SymbolState, falling back to a
// synthetic placeholder name when no resolver is available or it fails
// to identify anything at the position.
func (a *LspDatabaseAdapter) resolveDetails(filePath string, line, column int, language, workspaceRoot string) (SymbolState, bool) {
	var details SymbolDetails
	if a.resolver != nil {
		if d, err := a.resolver.ResolveDetails(filePath, line, column, language); err == nil {
			details = d
		}
	}
	if details.Name == "" {
		details.Name = syntheticName(line, column)
		details.Kind = "unknown"
		details.StartLine = line
		details.StartChar = column
		details.EndLine = line
		details.EndChar = column
	}

	content := readFileOrNil(filePath)
	class := ClassificationResolved
	if content == nil {
		class = ClassificationUnresolved
	}
	uid := a.uids.Generate(workspaceRoot, filePath, content, details.Name, details.StartLine+1, details.StartChar, class)
	relativePath := a.uids.NormalizePath(uid, pathutil.ToRelative(filePath, workspaceRoot))

	metadata := details.Metadata
	if metadata == "" {
		metadata = "lsp_reference_autocreate"
	}

	return SymbolState{
		SymbolUID:     uid,
		FilePath:      relativePath,
		Language:      language,
		Name:          details.Name,
		FQN:           details.FQN,
		Kind:          details.Kind,
		Signature:     details.Signature,
		Visibility:    details.Visibility,
		DefStartLine:  details.StartLine,
		DefStartChar:  details.StartChar,
		DefEndLine:    details.EndLine,
		DefEndChar:    details.EndChar,
		IsDefinition:  details.IsDefinition,
		Metadata:      metadata,
	}, true
}

func syntheticName(line, column int) string {
	return "pos_" + strconv.Itoa(line+1) + "_" + strconv.Itoa(column)
}

func (a *LspDatabaseAdapter) logf(level, format string, args ...any) {
	if a.logger == nil {
		return
	}
	switch level {
	case "warn":
		a.logger.Logger.Warn().Msgf(format, args...)
	default:
		a.logger.Logger.Debug().Msgf(format, args...)
	}
}
