//go:build cgo

package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"archo/internal/facts"
)

func grammar(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangGo:
		return golang.GetLanguage(), nil
	case LangPython:
		return python.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}

// TreeSitterExtractor parses one language's sources directly. It resolves a
// call statically only when the callee is a function defined in the same
// file; everything else it can see is reported heuristically with a reduced
// confidence.
type TreeSitterExtractor struct {
	lang   Language
	parser *sitter.Parser
}

// NewTreeSitterExtractor creates a syntactic extractor for one language.
func NewTreeSitterExtractor(lang Language) *TreeSitterExtractor {
	return &TreeSitterExtractor{lang: lang, parser: sitter.NewParser()}
}

// Language implements Extractor.
func (e *TreeSitterExtractor) Language() string { return string(e.lang) }

// Available reports whether syntactic extraction is compiled in.
func Available() bool { return true }

// Extract implements Extractor.
func (e *TreeSitterExtractor) Extract(ctx context.Context, req Request) (facts.CodeGraph, error) {
	var g facts.CodeGraph

	files := req.Files
	if len(files) == 0 {
		var err error
		files, err = walkSources(req.Root)
		if err != nil {
			return g, err
		}
	}

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return g, err
		}
		lang, ok := LanguageFromExtension(filepath.Ext(rel))
		if !ok || lang != e.lang {
			continue
		}
		source, err := os.ReadFile(filepath.Join(req.Root, rel))
		if err != nil {
			continue
		}
		fg, err := e.extractFile(ctx, req, rel, source, lang)
		if err != nil {
			continue
		}
		g.Symbols = append(g.Symbols, fg.Symbols...)
		g.Calls = append(g.Calls, fg.Calls...)
		g.Modules = append(g.Modules, fg.Modules...)
		g.KillPatternHits = append(g.KillPatternHits, fg.KillPatternHits...)
	}

	return g, nil
}

func (e *TreeSitterExtractor) extractFile(ctx context.Context, req Request, rel string, source []byte, lang Language) (facts.CodeGraph, error) {
	var g facts.CodeGraph

	tsLang, err := grammar(lang)
	if err != nil {
		return g, err
	}
	e.parser.SetLanguage(tsLang)
	tree, err := e.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return g, fmt.Errorf("parse %s: %w", rel, err)
	}
	root := tree.RootNode()
	module := moduleOf(rel)

	// Symbols first: same-file call resolution needs the local name table.
	local := make(map[string]string) // bare name -> symbol id
	for _, node := range findNodes(root, functionNodeTypes(lang)) {
		name := nodeName(node, source, lang)
		if name == "" {
			continue
		}
		kind := facts.KindFunction
		container := containerName(node, source, lang)
		if container != "" || node.Type() == "method_declaration" || node.Type() == "method_definition" {
			kind = facts.KindMethod
		}
		id := StableID(req.Repo, Fingerprint{
			Container: qualify(module, container),
			Name:      name,
			Kind:      string(kind),
			Arity:     arityOf(node),
		})
		g.Symbols = append(g.Symbols, facts.Symbol{
			ID:                 id,
			FullyQualifiedName: qualify(qualify(module, container), name),
			Kind:               kind,
			OriginFile:         rel,
			Span:               facts.ByteSpan{Start: int(node.StartByte()), End: int(node.EndByte())},
			Visibility:         visibilityOf(name, lang),
		})
		if container == "" {
			local[name] = id
		}
	}
	for _, node := range findNodes(root, classNodeTypes(lang)) {
		name := nodeName(node, source, lang)
		if name == "" {
			continue
		}
		id := StableID(req.Repo, Fingerprint{Container: module, Name: name, Kind: string(facts.KindClass)})
		g.Symbols = append(g.Symbols, facts.Symbol{
			ID:                 id,
			FullyQualifiedName: qualify(module, name),
			Kind:               facts.KindClass,
			OriginFile:         rel,
			Span:               facts.ByteSpan{Start: int(node.StartByte()), End: int(node.EndByte())},
			Visibility:         visibilityOf(name, lang),
		})
	}

	g.Calls = append(g.Calls, extractCalls(root, source, lang, req.Repo, rel, module, local)...)
	g.Modules = append(g.Modules, extractImports(root, source, lang, module)...)
	g.KillPatternHits = append(g.KillPatternHits, scanKillPatterns(source, rel, module, req.KillPatterns)...)

	return g, nil
}

// extractCalls walks call expressions inside function bodies. A bare callee
// defined in the same file is static; member and unresolved calls are
// heuristic.
func extractCalls(root *sitter.Node, source []byte, lang Language, repo, rel, module string, local map[string]string) []facts.CallEdge {
	var calls []facts.CallEdge

	for _, fn := range findNodes(root, functionNodeTypes(lang)) {
		callerName := nodeName(fn, source, lang)
		if callerName == "" {
			continue
		}
		container := containerName(fn, source, lang)
		callerKind := facts.KindFunction
		if container != "" || fn.Type() == "method_declaration" || fn.Type() == "method_definition" {
			callerKind = facts.KindMethod
		}
		callerID := StableID(repo, Fingerprint{
			Container: qualify(module, container),
			Name:      callerName,
			Kind:      string(callerKind),
			Arity:     arityOf(fn),
		})

		for _, call := range findNodes(fn, callNodeTypes(lang)) {
			callee := call.ChildByFieldName("function")
			if callee == nil {
				continue
			}
			site := facts.CallSite{
				File: rel,
				Line: int(call.StartPoint().Row) + 1,
				Col:  int(call.StartPoint().Column) + 1,
			}
			switch callee.Type() {
			case "identifier":
				name := string(source[callee.StartByte():callee.EndByte()])
				if toID, ok := local[name]; ok {
					calls = append(calls, facts.CallEdge{
						FromSymbolID: callerID,
						ToSymbolID:   toID,
						Site:         site,
						Resolution:   facts.ResolutionStatic,
						Confidence:   1.0,
					})
					continue
				}
				// Unresolved bare call, likely an import.
				calls = append(calls, facts.CallEdge{
					FromSymbolID: callerID,
					ToSymbolID:   StableID(repo, Fingerprint{Name: name, Kind: string(facts.KindFunction)}),
					Site:         site,
					Resolution:   facts.ResolutionHeuristic,
					Confidence:   0.6,
				})
			case "selector_expression", "attribute", "member_expression":
				method := callee.ChildByFieldName("field")
				if method == nil {
					method = callee.ChildByFieldName("attribute")
				}
				if method == nil {
					method = callee.ChildByFieldName("property")
				}
				if method == nil {
					continue
				}
				name := string(source[method.StartByte():method.EndByte()])
				calls = append(calls, facts.CallEdge{
					FromSymbolID: callerID,
					ToSymbolID:   StableID(repo, Fingerprint{Name: name, Kind: string(facts.KindMethod)}),
					Site:         site,
					Resolution:   facts.ResolutionHeuristic,
					Confidence:   0.75,
				})
			}
		}
	}

	return calls
}

// extractImports maps import statements to module edges. Only repository-
// relative imports produce edges; external packages are not modules.
func extractImports(root *sitter.Node, source []byte, lang Language, fromModule string) []facts.ModuleEdge {
	var edges []facts.ModuleEdge

	addEdge := func(target string) {
		to := moduleFromImport(target)
		if to == "" || to == fromModule {
			return
		}
		edges = append(edges, facts.ModuleEdge{FromModule: fromModule, ToModule: to, Weight: 1})
	}

	switch lang {
	case LangGo:
		for _, spec := range findNodes(root, []string{"import_spec"}) {
			path := spec.ChildByFieldName("path")
			if path == nil {
				continue
			}
			addEdge(strings.Trim(string(source[path.StartByte():path.EndByte()]), `"`))
		}
	case LangPython:
		for _, imp := range findNodes(root, []string{"import_statement", "import_from_statement"}) {
			for _, name := range findNodes(imp, []string{"dotted_name"}) {
				addEdge(strings.ReplaceAll(string(source[name.StartByte():name.EndByte()]), ".", "/"))
				break
			}
		}
	case LangTypeScript:
		for _, imp := range findNodes(root, []string{"import_statement"}) {
			src := imp.ChildByFieldName("source")
			if src == nil {
				continue
			}
			target := strings.Trim(string(source[src.StartByte():src.EndByte()]), `"'`)
			if !strings.HasPrefix(target, ".") {
				continue
			}
			addEdge(strings.TrimLeft(target, "./"))
		}
	}

	return edges
}

func walkSources(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			name := info.Name()
			if strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" || name == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := LanguageFromExtension(filepath.Ext(path)); !ok {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	return files, err
}

func visibilityOf(name string, lang Language) string {
	switch lang {
	case LangGo:
		if name != "" && name[0] >= 'A' && name[0] <= 'Z' {
			return "public"
		}
		return "private"
	case LangPython:
		if strings.HasPrefix(name, "_") {
			return "private"
		}
		return "public"
	default:
		return "public"
	}
}

func functionNodeTypes(lang Language) []string {
	switch lang {
	case LangGo:
		return []string{"function_declaration", "method_declaration"}
	case LangPython:
		return []string{"function_definition"}
	case LangTypeScript:
		return []string{"function_declaration", "method_definition"}
	default:
		return nil
	}
}

func classNodeTypes(lang Language) []string {
	switch lang {
	case LangGo:
		return []string{"type_declaration"}
	case LangPython:
		return []string{"class_definition"}
	case LangTypeScript:
		return []string{"class_declaration", "interface_declaration"}
	default:
		return nil
	}
}

func callNodeTypes(lang Language) []string {
	switch lang {
	case LangGo, LangPython, LangTypeScript:
		return []string{"call_expression", "call"}
	default:
		return nil
	}
}

func nodeName(node *sitter.Node, source []byte, lang Language) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil && lang == LangGo && node.Type() == "type_declaration" {
		for i := uint32(0); i < node.ChildCount(); i++ {
			child := node.Child(int(i))
			if child != nil && child.Type() == "type_spec" {
				nameNode = child.ChildByFieldName("name")
				break
			}
		}
	}
	if nameNode == nil {
		return ""
	}
	return string(source[nameNode.StartByte():nameNode.EndByte()])
}

// containerName resolves the enclosing type for methods: the receiver type
// in Go, the enclosing class elsewhere.
func containerName(node *sitter.Node, source []byte, lang Language) string {
	switch lang {
	case LangGo:
		if node.Type() != "method_declaration" {
			return ""
		}
		recv := node.ChildByFieldName("receiver")
		if recv == nil {
			return ""
		}
		for _, t := range findNodes(recv, []string{"type_identifier"}) {
			return string(source[t.StartByte():t.EndByte()])
		}
		return ""
	case LangPython, LangTypeScript:
		for p := node.Parent(); p != nil; p = p.Parent() {
			if contains(classNodeTypes(lang), p.Type()) {
				return nodeName(p, source, lang)
			}
		}
		return ""
	default:
		return ""
	}
}

func arityOf(node *sitter.Node) int {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return 0
	}
	return int(params.NamedChildCount())
}

func findNodes(root *sitter.Node, types []string) []*sitter.Node {
	if len(types) == 0 {
		return nil
	}
	var result []*sitter.Node
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if contains(types, node.Type()) {
			result = append(result, node)
		}
		for i := uint32(0); i < node.ChildCount(); i++ {
			walk(node.Child(int(i)))
		}
	}
	walk(root)
	return result
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
