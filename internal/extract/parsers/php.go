package parsers

import (
	"context"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"

	"github.com/callscope/callscope/internal/extract/extraction"
)

// PHPParser parses PHP files.
type phpParser struct {
	*treeSitterParser
}

// NewPHPParser creates a new PHP parser.
func NewPHPParser() *phpParser {
	lang := sitter.NewLanguage(php.LanguagePHP())
	return &phpParser{
		treeSitterParser: newTreeSitterParser(lang, "php"),
	}
}

// ParseFile parses a PHP source file and extracts call-graph facts.
func (p *phpParser) ParseFile(ctx context.Context, filePath string, source []byte) (*extraction.FileExtraction, error) {
	tree := p.parse(source)
	if tree == nil {
		return nil, nil // unparseable input
	}
	defer tree.Close()

	root := tree.RootNode()
	out := p.newFileExtraction(filePath)

	p.extractClasses(root, source, out)
	p.extractFunctions(root, source, out)
	p.extractUses(root, source, out)
	p.extractCalls(root, source, out)
	collectErrors(root, out)

	return out, nil
}

func (p *phpParser) extractClasses(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		kind := n.Kind()
		if kind != "class_declaration" && kind != "interface_declaration" && kind != "trait_declaration" {
			return true
		}

		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}

		class := extraction.ClassInfo{
			Name:       extractNodeText(nameNode, source),
			Exported:   true,
			Abstract:   kind == "interface_declaration" || findChildByType(n, "abstract_modifier") != nil,
			Decorators: phpAttributes(n, source),
			StartLine:  startLine(n),
			EndLine:    endLine(n),
		}

		if base := findChildByType(n, "base_clause"); base != nil {
			if parent := firstNamedChild(base); parent != nil {
				class.Extends = extractNodeText(parent, source)
			}
		}
		if impl := findChildByType(n, "class_interface_clause"); impl != nil {
			for i := 0; i < int(impl.NamedChildCount()); i++ {
				class.Implements = append(class.Implements, extractNodeText(impl.NamedChild(uint(i)), source))
			}
		}

		out.Classes = append(out.Classes, class)
		return true
	})
}

func (p *phpParser) extractFunctions(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		kind := n.Kind()
		if kind != "function_definition" && kind != "method_declaration" {
			return true
		}

		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}

		name := extractNodeText(nameNode, source)
		qualified := name
		if enclosing := phpEnclosingType(n, source); enclosing != "" {
			qualified = enclosing + "." + name
		}

		fn := extraction.FunctionInfo{
			Name:          name,
			QualifiedName: qualified,
			Parameters:    p.extractParameters(n.ChildByFieldName("parameters"), source),
			Exported:      phpIsPublic(n, source),
			Constructor:   name == "__construct",
			Decorators:    phpAttributes(n, source),
			StartLine:     startLine(n),
			EndLine:       endLine(n),
		}
		if rt := n.ChildByFieldName("return_type"); rt != nil {
			fn.ReturnType = strings.TrimSpace(strings.TrimPrefix(extractNodeText(rt, source), ":"))
		}

		out.Functions = append(out.Functions, fn)
		return true
	})
}

func (p *phpParser) extractParameters(params *sitter.Node, source []byte) []extraction.Parameter {
	if params == nil {
		return nil
	}

	var result []extraction.Parameter
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(uint(i))
		param := extraction.Parameter{}

		switch child.Kind() {
		case "simple_parameter", "property_promotion_parameter":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				param.Name = extractNodeText(nameNode, source)
			}
			if t := child.ChildByFieldName("type"); t != nil {
				param.Type = extractNodeText(t, source)
			}
			if def := child.ChildByFieldName("default_value"); def != nil {
				param.Default = extractNodeText(def, source)
			}
		case "variadic_parameter":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				param.Name = extractNodeText(nameNode, source)
			}
			param.Rest = true
		default:
			continue
		}

		if param.Name != "" {
			result = append(result, param)
		}
	}
	return result
}

func (p *phpParser) extractUses(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "namespace_use_declaration" {
			return true
		}

		for i := 0; i < int(n.NamedChildCount()); i++ {
			clause := n.NamedChild(uint(i))
			if clause.Kind() != "namespace_use_clause" {
				continue
			}
			target := firstNamedChild(clause)
			if target == nil {
				continue
			}

			path := extractNodeText(target, source)
			local := path
			if idx := strings.LastIndexByte(path, '\\'); idx >= 0 {
				local = path[idx+1:]
			}
			if alias := findChildByType(clause, "namespace_aliasing_clause"); alias != nil {
				if aliasName := firstNamedChild(alias); aliasName != nil {
					local = extractNodeText(aliasName, source)
				}
			}

			out.Imports = append(out.Imports, extraction.ImportInfo{
				Source: path,
				Named:  []string{local},
				Line:   startLine(n),
			})
		}
		return true
	})
}

func (p *phpParser) extractCalls(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		call := extraction.CallSite{
			Line:   startLine(n),
			Column: startColumn(n),
		}

		switch n.Kind() {
		case "function_call_expression":
			fn := n.ChildByFieldName("function")
			if fn == nil {
				return true
			}
			call.Callee = extractNodeText(fn, source)
		case "member_call_expression":
			nameNode := n.ChildByFieldName("name")
			object := n.ChildByFieldName("object")
			if nameNode == nil {
				return true
			}
			call.Callee = extractNodeText(nameNode, source)
			call.Receiver = extractNodeText(object, source)
		case "scoped_call_expression":
			nameNode := n.ChildByFieldName("name")
			scope := n.ChildByFieldName("scope")
			if nameNode == nil {
				return true
			}
			call.Callee = extractNodeText(nameNode, source)
			call.Receiver = extractNodeText(scope, source)
		case "object_creation_expression":
			// "new Foo(...)" targets Foo's constructor.
			class := firstNamedChild(n)
			if class == nil {
				return true
			}
			call.Callee = "__construct"
			call.Receiver = extractNodeText(class, source)
		default:
			return true
		}

		if args := n.ChildByFieldName("arguments"); args != nil {
			call.ArgCount = int(args.NamedChildCount())
		}

		if call.Callee != "" {
			out.Calls = append(out.Calls, call)
		}
		return true
	})
}

// phpAttributes collects #[Attr] attribute names as decorators.
func phpAttributes(n *sitter.Node, source []byte) []string {
	list := findChildByType(n, "attribute_list")
	if list == nil {
		return nil
	}

	var attrs []string
	walkTree(list, func(a *sitter.Node) bool {
		if a.Kind() != "attribute" {
			return true
		}
		name := extractNodeText(a, source)
		if idx := strings.IndexByte(name, '('); idx > 0 {
			name = name[:idx]
		}
		if name != "" {
			attrs = append(attrs, "@"+name)
		}
		return false
	})
	return attrs
}

// phpIsPublic treats methods without private or protected modifiers as
// public; free functions are always public.
func phpIsPublic(n *sitter.Node, source []byte) bool {
	if n.Kind() != "method_declaration" {
		return true
	}
	if vis := findChildByType(n, "visibility_modifier"); vis != nil {
		text := extractNodeText(vis, source)
		return text != "private" && text != "protected"
	}
	return true
}

// phpEnclosingType climbs to the nearest class, interface, or trait name.
func phpEnclosingType(n *sitter.Node, source []byte) string {
	for parent := n.Parent(); parent != nil; parent = parent.Parent() {
		switch parent.Kind() {
		case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
			if nameNode := parent.ChildByFieldName("name"); nameNode != nil {
				return extractNodeText(nameNode, source)
			}
			return ""
		}
	}
	return ""
}
