package pysource

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/harrison/weaver/internal/models"
)

// TreeSitterExtractor parses source with the tree-sitter Python grammar.
// Results carry high confidence; any ERROR node fails the extraction.
type TreeSitterExtractor struct{}

// NewTreeSitterExtractor returns the structural extractor.
func NewTreeSitterExtractor() *TreeSitterExtractor {
	return &TreeSitterExtractor{}
}

func (e *TreeSitterExtractor) Name() string { return "tree-sitter" }

func parseTree(ctx context.Context, src []byte) (*sitter.Node, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	return tree.RootNode(), nil
}

// CheckSyntax parses src and returns a *SyntaxError for the first broken
// region, or nil when the file parses cleanly.
func CheckSyntax(ctx context.Context, file string, src []byte) error {
	root, err := parseTree(ctx, src)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", file, err)
	}
	if root.HasError() {
		return &SyntaxError{File: file, Line: firstErrorLine(root)}
	}
	return nil
}

func firstErrorLine(n *sitter.Node) int {
	if n.Type() == "ERROR" || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.HasError() {
			return firstErrorLine(child)
		}
	}
	return int(n.StartPoint().Row) + 1
}

func (e *TreeSitterExtractor) Extract(ctx context.Context, file string, src []byte) (*models.SourceSummary, error) {
	root, err := parseTree(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	if root.HasError() {
		return nil, &SyntaxError{File: file, Line: firstErrorLine(root)}
	}

	w := &walker{src: src, file: file, summary: newSummary(file, models.ConfidenceHigh, e.Name())}
	w.visit(root, scopeModule, nil)
	return w.summary, nil
}

type scope int

const (
	scopeModule scope = iota
	scopeClass
	scopeFunction
)

type walker struct {
	src     []byte
	file    string
	summary *models.SourceSummary
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.src)
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func (w *walker) visit(n *sitter.Node, sc scope, cls *models.ClassSignature) {
	switch n.Type() {
	case "import_statement":
		w.summary.Imports = append(w.summary.Imports, w.importStatement(n)...)
		return
	case "import_from_statement", "future_import_statement":
		w.summary.Imports = append(w.summary.Imports, w.fromImport(n))
		return
	case "decorated_definition":
		var decorators []string
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "decorator" {
				decorators = append(decorators, strings.TrimSpace(strings.TrimPrefix(w.text(child), "@")))
			}
		}
		def := n.ChildByFieldName("definition")
		if def == nil {
			return
		}
		w.definition(def, sc, cls, decorators)
		return
	case "function_definition", "class_definition":
		w.definition(n, sc, cls, nil)
		return
	case "expression_statement":
		if sc == scopeModule {
			w.annotatedAssignment(n)
		}
	case "call":
		w.call(n)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.visit(n.NamedChild(i), sc, cls)
	}
}

func (w *walker) definition(n *sitter.Node, sc scope, cls *models.ClassSignature, decorators []string) {
	body := n.ChildByFieldName("body")
	if n.Type() == "class_definition" {
		class := models.ClassSignature{
			Name: w.text(n.ChildByFieldName("name")),
			File: w.file,
			Line: line(n),
		}
		if supers := n.ChildByFieldName("superclasses"); supers != nil {
			for i := 0; i < int(supers.NamedChildCount()); i++ {
				base := supers.NamedChild(i)
				if base.Type() == "keyword_argument" || base.Type() == "comment" {
					continue
				}
				class.Bases = append(class.Bases, w.text(base))
			}
		}
		if body != nil {
			w.visit(body, scopeClass, &class)
		}
		if sc != scopeFunction {
			w.summary.Classes = append(w.summary.Classes, class)
		}
		return
	}

	fn := models.FunctionSignature{
		Name:       w.text(n.ChildByFieldName("name")),
		ReturnType: w.text(n.ChildByFieldName("return_type")),
		Decorators: decorators,
		File:       w.file,
		Line:       line(n),
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil && !child.IsNamed() && child.Type() == "async" {
			fn.Async = true
			break
		}
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		fn.Params = w.parameters(params)
	}
	switch {
	case sc == scopeClass && cls != nil:
		fn.Class = cls.Name
		cls.Methods = append(cls.Methods, fn)
	case sc == scopeModule:
		w.summary.Functions = append(w.summary.Functions, fn)
	}
	if body != nil {
		w.visit(body, scopeFunction, nil)
	}
}

func (w *walker) parameters(n *sitter.Node) []models.Parameter {
	params := []models.Parameter{}
	keywordOnly := false
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		var p models.Parameter
		switch child.Type() {
		case "identifier":
			p.Name = w.text(child)
		case "typed_parameter":
			inner := child.NamedChild(0)
			p = w.splat(inner)
			p.Annotation = w.text(child.ChildByFieldName("type"))
		case "default_parameter":
			p.Name = w.text(child.ChildByFieldName("name"))
			p.Default = w.text(child.ChildByFieldName("value"))
		case "typed_default_parameter":
			p.Name = w.text(child.ChildByFieldName("name"))
			p.Annotation = w.text(child.ChildByFieldName("type"))
			p.Default = w.text(child.ChildByFieldName("value"))
		case "list_splat_pattern", "dictionary_splat_pattern":
			if child.NamedChildCount() == 0 {
				keywordOnly = true
				continue
			}
			p = w.splat(child)
		case "keyword_separator":
			keywordOnly = true
			continue
		default:
			continue
		}
		if p.Name == "" {
			continue
		}
		if keywordOnly && !p.Variadic && !p.KwVariadic {
			p.KeywordOnly = true
		}
		if p.Variadic {
			keywordOnly = true
		}
		params = append(params, p)
	}
	return params
}

func (w *walker) splat(n *sitter.Node) models.Parameter {
	if n == nil {
		return models.Parameter{}
	}
	switch n.Type() {
	case "list_splat_pattern":
		return models.Parameter{Name: w.text(n.NamedChild(0)), Variadic: true}
	case "dictionary_splat_pattern":
		return models.Parameter{Name: w.text(n.NamedChild(0)), KwVariadic: true}
	default:
		return models.Parameter{Name: w.text(n)}
	}
}

func (w *walker) importStatement(n *sitter.Node) []models.Import {
	var out []models.Import
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			out = append(out, models.Import{Module: w.text(child), Line: line(n)})
		case "aliased_import":
			out = append(out, models.Import{
				Module: w.text(child.ChildByFieldName("name")),
				Alias:  w.text(child.ChildByFieldName("alias")),
				Line:   line(n),
			})
		}
	}
	return out
}

func (w *walker) fromImport(n *sitter.Node) models.Import {
	imp := models.Import{From: true, Line: line(n)}
	module := n.ChildByFieldName("module_name")
	if n.Type() == "future_import_statement" {
		imp.Module = "__future__"
	} else {
		imp.Module = w.text(module)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if module != nil && child.StartByte() == module.StartByte() {
			continue
		}
		switch child.Type() {
		case "dotted_name", "aliased_import":
			imp.Names = append(imp.Names, w.text(child))
		case "wildcard_import":
			imp.Names = append(imp.Names, "*")
		}
	}
	return imp
}

func (w *walker) annotatedAssignment(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "assignment" {
			continue
		}
		typ := child.ChildByFieldName("type")
		left := child.ChildByFieldName("left")
		if typ != nil && left != nil && left.Type() == "identifier" {
			w.summary.TypeHints[w.text(left)] = w.text(typ)
		}
	}
}

func (w *walker) call(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	c := models.Call{Line: line(n)}
	switch fn.Type() {
	case "identifier":
		c.Name = w.text(fn)
	case "attribute":
		c.Name = w.text(fn.ChildByFieldName("attribute"))
		c.Attribute = true
	default:
		return
	}
	args := n.ChildByFieldName("arguments")
	if args != nil {
		if args.Type() == "generator_expression" {
			c.Positional = 1
		} else {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				arg := args.NamedChild(i)
				switch arg.Type() {
				case "keyword_argument":
					c.Keywords = append(c.Keywords, w.text(arg.ChildByFieldName("name")))
				case "list_splat", "dictionary_splat":
					c.Splat = true
				case "comment":
				default:
					c.Positional++
				}
			}
		}
	}
	w.summary.Calls = append(w.summary.Calls, c)
}

// ImportInsertionLine returns the 0-based line index where new imports
// belong: after the module docstring and the leading import block. Falls
// back to a line scan when the file does not parse.
func ImportInsertionLine(ctx context.Context, src []byte) int {
	root, err := parseTree(ctx, src)
	if err != nil || root.HasError() {
		return importInsertionLineByPattern(string(src))
	}
	insertAt := 0
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "comment":
			continue
		case "import_statement", "import_from_statement", "future_import_statement":
			insertAt = int(child.EndPoint().Row) + 1
			continue
		case "expression_statement":
			if i == 0 || (insertAt == 0 && isFirstStatement(root, i)) {
				if child.NamedChildCount() == 1 && child.NamedChild(0).Type() == "string" {
					insertAt = int(child.EndPoint().Row) + 1
					continue
				}
			}
		}
		return insertAt
	}
	return insertAt
}

func isFirstStatement(root *sitter.Node, idx int) bool {
	for i := 0; i < idx; i++ {
		if root.NamedChild(i).Type() != "comment" {
			return false
		}
	}
	return true
}
