package parsers

import (
	"context"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"

	"github.com/callscope/callscope/internal/extract/extraction"
)

// RubyParser parses Ruby files.
type rubyParser struct {
	*treeSitterParser
}

// NewRubyParser creates a new Ruby parser.
func NewRubyParser() *rubyParser {
	lang := sitter.NewLanguage(ruby.Language())
	return &rubyParser{
		treeSitterParser: newTreeSitterParser(lang, "ruby"),
	}
}

// ParseFile parses a Ruby source file and extracts call-graph facts.
func (p *rubyParser) ParseFile(ctx context.Context, filePath string, source []byte) (*extraction.FileExtraction, error) {
	tree := p.parse(source)
	if tree == nil {
		return nil, nil // unparseable input
	}
	defer tree.Close()

	root := tree.RootNode()
	out := p.newFileExtraction(filePath)

	p.extractClasses(root, source, out)
	p.extractMethods(root, source, out)
	p.extractCalls(root, source, out)
	collectErrors(root, out)

	return out, nil
}

func (p *rubyParser) extractClasses(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		kind := n.Kind()
		if kind != "class" && kind != "module" {
			return true
		}

		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}

		class := extraction.ClassInfo{
			Name:      extractNodeText(nameNode, source),
			Exported:  true,
			StartLine: startLine(n),
			EndLine:   endLine(n),
		}
		if super := n.ChildByFieldName("superclass"); super != nil {
			if base := firstNamedChild(super); base != nil {
				class.Extends = extractNodeText(base, source)
			}
		}

		out.Classes = append(out.Classes, class)
		return true
	})
}

func (p *rubyParser) extractMethods(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		kind := n.Kind()
		if kind != "method" && kind != "singleton_method" {
			return true
		}

		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}

		name := extractNodeText(nameNode, source)
		qualified := name
		if enclosing := rubyEnclosingType(n, source); enclosing != "" {
			qualified = enclosing + "." + name
		}

		out.Functions = append(out.Functions, extraction.FunctionInfo{
			Name:          name,
			QualifiedName: qualified,
			Parameters:    p.extractParameters(n.ChildByFieldName("parameters"), source),
			Exported:      true,
			Constructor:   name == "initialize",
			StartLine:     startLine(n),
			EndLine:       endLine(n),
		})
		return true
	})
}

func (p *rubyParser) extractParameters(params *sitter.Node, source []byte) []extraction.Parameter {
	if params == nil {
		return nil
	}

	var result []extraction.Parameter
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(uint(i))
		param := extraction.Parameter{}

		switch child.Kind() {
		case "identifier":
			param.Name = extractNodeText(child, source)
		case "optional_parameter", "keyword_parameter":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				param.Name = extractNodeText(nameNode, source)
			}
			if value := child.ChildByFieldName("value"); value != nil {
				param.Default = extractNodeText(value, source)
			}
		case "splat_parameter", "hash_splat_parameter":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				param.Name = extractNodeText(nameNode, source)
			}
			param.Rest = true
		case "block_parameter":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				param.Name = "&" + extractNodeText(nameNode, source)
			}
		default:
			continue
		}

		if param.Name != "" || param.Rest {
			result = append(result, param)
		}
	}
	return result
}

func (p *rubyParser) extractCalls(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "call" {
			return true
		}

		methodNode := n.ChildByFieldName("method")
		if methodNode == nil {
			return true
		}
		callee := extractNodeText(methodNode, source)

		// "require" and "require_relative" are ordinary calls in the
		// grammar but carry import semantics.
		if callee == "require" || callee == "require_relative" {
			if src := rubyRequireSource(n, source); src != "" {
				out.Imports = append(out.Imports, extraction.ImportInfo{
					Source: src,
					Line:   startLine(n),
				})
				return true
			}
		}

		call := extraction.CallSite{
			Callee: callee,
			Line:   startLine(n),
			Column: startColumn(n),
		}
		if receiver := n.ChildByFieldName("receiver"); receiver != nil {
			call.Receiver = extractNodeText(receiver, source)
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

// rubyRequireSource pulls the string literal out of a require call.
func rubyRequireSource(call *sitter.Node, source []byte) string {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return ""
	}
	first := args.NamedChild(0)
	if first.Kind() != "string" {
		return ""
	}
	return strings.Trim(extractNodeText(first, source), `"'`)
}

// rubyEnclosingType climbs to the nearest class or module name. Nested
// modules qualify with "::" the way Ruby spells constants.
func rubyEnclosingType(n *sitter.Node, source []byte) string {
	var parts []string
	for parent := n.Parent(); parent != nil; parent = parent.Parent() {
		kind := parent.Kind()
		if kind != "class" && kind != "module" {
			continue
		}
		if nameNode := parent.ChildByFieldName("name"); nameNode != nil {
			parts = append(parts, extractNodeText(nameNode, source))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	reverse(parts)
	return strings.Join(parts, "::")
}
