// Package resolver snaps LSP positions to the tree-sitter symbol they
// fall inside or nearest to, for the cases an upstream LSP response
// leaves underspecified (a reference location with no symbol name
// attached, a position that lands between tokens).
package resolver

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/standardbeagle/lcid/internal/graph"
)

// definingNodeKinds lists the tree-sitter node kinds treated as a symbol
// definition site, across every wired grammar. A node of one of these
// kinds supplies both the symbol's name and its kind.
var definingNodeKinds = map[string]string{
	"function_declaration":  "function",
	"function_item":         "function",
	"function_definition":   "function",
	"method_declaration":    "method",
	"method_definition":     "method",
	"constructor_declaration": "constructor",
	"class_declaration":     "class",
	"class_specifier":       "class",
	"class_definition":      "class",
	"interface_declaration": "interface",
	"trait_item":            "interface",
	"struct_item":           "struct",
	"struct_specifier":      "struct",
	"struct_declaration":    "struct",
	"enum_declaration":      "enum",
	"enum_item":             "enum",
	"enum_specifier":        "enum",
	"type_declaration":      "type",
	"type_item":             "type",
	"record_declaration":    "record",
}

// identifierNodeKinds lists the node kinds treated as bare identifier
// tokens a reference can point at directly.
var identifierNodeKinds = map[string]bool{
	"identifier":      true,
	"type_identifier": true,
	"field_identifier": true,
	"property_identifier": true,
}

var keywordOrInvalid = map[string]bool{
	"": true, "fn": true, "func": true, "def": true, "class": true, "struct": true,
	"impl": true, "trait": true, "pub": true, "let": true, "var": true, "const": true,
}

// TreeSitterResolver implements graph.SymbolResolver using per-language
// tree-sitter grammars, with a regex-sweep and synthetic-name fallback
// for positions no grammar can parse.
type TreeSitterResolver struct {
	languages map[string]*tree_sitter.Language
}

// NewTreeSitterResolver builds a resolver with every grammar the daemon
// ships wired in.
func NewTreeSitterResolver() *TreeSitterResolver {
	r := &TreeSitterResolver{languages: make(map[string]*tree_sitter.Language)}
	r.languages["go"] = tree_sitter.NewLanguage(tree_sitter_go.Language())
	r.languages["rust"] = tree_sitter.NewLanguage(tree_sitter_rust.Language())
	r.languages["python"] = tree_sitter.NewLanguage(tree_sitter_python.Language())
	r.languages["javascript"] = tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	r.languages["typescript"] = tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	r.languages["java"] = tree_sitter.NewLanguage(tree_sitter_java.Language())
	r.languages["csharp"] = tree_sitter.NewLanguage(tree_sitter_csharp.Language())
	r.languages["cpp"] = tree_sitter.NewLanguage(tree_sitter_cpp.Language())
	r.languages["php"] = tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())
	return r
}

func (r *TreeSitterResolver) languageFor(language string) *tree_sitter.Language {
	return r.languages[strings.ToLower(language)]
}

// ResolveDetails snaps to the identifier at (line, column) in filePath by
// descending to the smallest enclosing node and walking up to the
// nearest defining or identifier node, falling back to a regex sweep over
// the surrounding lines, and finally to a synthetic name.
func (r *TreeSitterResolver) ResolveDetails(filePath string, line, column int, language string) (graph.SymbolDetails, error) {
	source, err := os.ReadFile(filePath)
	if err != nil {
		return graph.SymbolDetails{}, fmt.Errorf("resolver: read %s: %w", filePath, err)
	}

	lang := r.languageFor(language)
	if lang == nil {
		return r.regexSweep(source, line, column)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang); err != nil {
		return r.regexSweep(source, line, column)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return r.regexSweep(source, line, column)
	}
	defer tree.Close()

	point := tree_sitter.Point{Row: uint(line), Column: uint(column)}
	node := tree.RootNode().NamedDescendantForPointRange(point, point)
	if node == nil {
		return r.regexSweep(source, line, column)
	}

	if strings.EqualFold(language, "rust") {
		if details, ok := r.extractRustImplSymbol(node, source); ok {
			return details, nil
		}
	}

	details, ok := r.symbolFromNode(*node, source)
	if ok {
		return details, nil
	}

	return r.regexSweep(source, line, column)
}

// symbolFromNode walks up from node to the nearest defining node and
// extracts its name and kind, anchored on the name identifier's start.
// Only when no ancestor is a defining node does it fall back to the
// nearest identifier node.
func (r *TreeSitterResolver) symbolFromNode(node tree_sitter.Node, source []byte) (graph.SymbolDetails, bool) {
	current := &node
	for current != nil {
		kind := current.Kind()
		if definingKind, ok := definingNodeKinds[kind]; ok {
			nameNode := current.ChildByFieldName("name")
			if nameNode == nil {
				nameNode = findIdentifierChild(current)
			}
			if nameNode != nil {
				name := string(source[nameNode.StartByte():nameNode.EndByte()])
				if !keywordOrInvalid[name] {
					start := nameNode.StartPosition()
					end := current.EndPosition()
					return graph.SymbolDetails{
						Name:         name,
						Kind:         definingKind,
						StartLine:    int(start.Row),
						StartChar:    int(start.Column),
						EndLine:      int(end.Row),
						EndChar:      int(end.Column),
						IsDefinition: true,
					}, true
				}
			}
		}
		current = current.Parent()
	}
	current = &node
	for current != nil {
		kind := current.Kind()
		if identifierNodeKinds[kind] {
			name := string(source[current.StartByte():current.EndByte()])
			if !keywordOrInvalid[name] {
				start := current.StartPosition()
				end := current.EndPosition()
				return graph.SymbolDetails{
					Name:      name,
					Kind:      nodeKindToSymbolKind(kind),
					StartLine: int(start.Row),
					StartChar: int(start.Column),
					EndLine:   int(end.Row),
					EndChar:   int(end.Column),
				}, true
			}
		}
		current = current.Parent()
	}
	return graph.SymbolDetails{}, false
}

func findIdentifierChild(node *tree_sitter.Node) *tree_sitter.Node {
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if identifierNodeKinds[child.Kind()] {
			return child
		}
	}
	return nil
}

func nodeKindToSymbolKind(kind string) string {
	switch kind {
	case "type_identifier":
		return "type"
	case "field_identifier", "property_identifier":
		return "field"
	default:
		return "variable"
	}
}

// extractRustImplSymbol synthesizes a symbol name for a position inside
// a Rust `impl` block: "impl <Trait> for <Type>" or "impl <Type>" when
// there is no trait, anchored on the type identifier, per the original
// adapter's trait-impl branch.
func (r *TreeSitterResolver) extractRustImplSymbol(node *tree_sitter.Node, source []byte) (graph.SymbolDetails, bool) {
	current := node
	for current != nil {
		if current.Kind() == "impl_item" {
			typeChild := current.ChildByFieldName("type")
			if typeChild == nil {
				return graph.SymbolDetails{}, false
			}
			typeName := string(source[typeChild.StartByte():typeChild.EndByte()])

			metadata := ""
			name := fmt.Sprintf("impl %s", typeName)
			if traitChild := current.ChildByFieldName("trait"); traitChild != nil {
				traitName := string(source[traitChild.StartByte():traitChild.EndByte()])
				name = fmt.Sprintf("impl %s for %s", traitName, typeName)
				metadata = fmt.Sprintf(`{"impl_type":%q,"trait":%q}`, typeName, traitName)
			} else {
				metadata = fmt.Sprintf(`{"impl_type":%q}`, typeName)
			}

			start := typeChild.StartPosition()
			end := current.EndPosition()
			return graph.SymbolDetails{
				Name:         name,
				Kind:         "impl",
				StartLine:    int(start.Row),
				StartChar:    int(start.Column),
				EndLine:      int(end.Row),
				EndChar:      int(end.Column),
				IsDefinition: true,
				Metadata:     metadata,
			}, true
		}
		current = current.Parent()
	}
	return graph.SymbolDetails{}, false
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// regexSweep scans +/-5 lines around (line, column) for the nearest
// identifier-shaped token when tree-sitter could not parse the file or
// found nothing at the position, and falls back to a synthetic name as a
// last resort.
func (r *TreeSitterResolver) regexSweep(source []byte, line, column int) (graph.SymbolDetails, error) {
	lines := strings.Split(string(source), "\n")
	const sweep = 5

	lo := line - sweep
	if lo < 0 {
		lo = 0
	}
	hi := line + sweep
	if hi >= len(lines) {
		hi = len(lines) - 1
	}

	best := ""
	bestLine := line
	bestCol := column
	bestDist := -1
	for l := lo; l <= hi && l < len(lines); l++ {
		for _, loc := range identifierPattern.FindAllStringIndex(lines[l], -1) {
			name := lines[l][loc[0]:loc[1]]
			if keywordOrInvalid[name] {
				continue
			}
			dist := abs(l-line)*1000 + abs(loc[0]-column)
			if bestDist == -1 || dist < bestDist {
				bestDist = dist
				best = name
				bestLine = l
				bestCol = loc[0]
			}
		}
	}

	if best == "" {
		return graph.SymbolDetails{
			Name:      fmt.Sprintf("pos_%d_%d", line+1, column),
			Kind:      "unknown",
			StartLine: line,
			StartChar: column,
			EndLine:   line,
			EndChar:   column,
		}, nil
	}

	return graph.SymbolDetails{
		Name:      best,
		Kind:      "unknown",
		StartLine: bestLine,
		StartChar: bestCol,
		EndLine:   bestLine,
		EndChar:   bestCol + len(best),
	}, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ClassifyRustReferenceContext reports what Rust source construct the
// position falls inside, used to filter trait-bound/trait-impl-header
// noise out of References edges.
func (r *TreeSitterResolver) ClassifyRustReferenceContext(filePath string, line, column int) (graph.ReferenceContext, error) {
	source, err := os.ReadFile(filePath)
	if err != nil {
		return graph.ContextOther, fmt.Errorf("resolver: read %s: %w", filePath, err)
	}

	lang := r.languages["rust"]
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang); err != nil {
		return graph.ContextOther, fmt.Errorf("resolver: configure rust parser: %w", err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return graph.ContextOther, fmt.Errorf("resolver: failed to parse rust source")
	}
	defer tree.Close()

	point := tree_sitter.Point{Row: uint(line), Column: uint(column)}
	node := tree.RootNode().NamedDescendantForPointRange(point, point)
	if node == nil {
		return graph.ContextOther, nil
	}

	current := node
	for current != nil {
		switch current.Kind() {
		case "trait_bound", "type_bound", "trait_bounds", "type_parameters",
			"where_clause", "where_predicate", "bounded_type",
			"higher_ranked_trait_bounds", "generic_type", "lifetime", "constraint":
			return graph.ContextTraitBound, nil
		case "impl_item":
			if traitChild := current.ChildByFieldName("trait"); traitChild != nil {
				traitRange := traitChild
				if withinRange(point, traitRange.StartPosition(), traitRange.EndPosition()) {
					return graph.ContextTraitImplTrait, nil
				}
			}
			return graph.ContextImplBodyOrType, nil
		case "call_expression", "method_call_expression", "field_expression",
			"macro_invocation", "path_expression", "scoped_identifier", "attribute_item":
			return graph.ContextOther, nil
		case "function_item", "struct_item", "enum_item", "trait_item", "mod_item":
			return graph.ContextOther, nil
		}
		current = current.Parent()
	}

	return graph.ContextOther, nil
}

func withinRange(p, start, end tree_sitter.Point) bool {
	if p.Row < start.Row || (p.Row == start.Row && p.Column < start.Column) {
		return false
	}
	if p.Row > end.Row || (p.Row == end.Row && p.Column > end.Column) {
		return false
	}
	return true
}
