package parsers

import (
	"context"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"

	"github.com/callscope/callscope/internal/extract/extraction"
)

// RustParser parses Rust files.
type rustParser struct {
	*treeSitterParser
}

// NewRustParser creates a new Rust parser.
func NewRustParser() *rustParser {
	lang := sitter.NewLanguage(rust.Language())
	return &rustParser{
		treeSitterParser: newTreeSitterParser(lang, "rust"),
	}
}

// ParseFile parses a Rust source file and extracts call-graph facts.
func (p *rustParser) ParseFile(ctx context.Context, filePath string, source []byte) (*extraction.FileExtraction, error) {
	tree := p.parse(source)
	if tree == nil {
		return nil, nil // unparseable input
	}
	defer tree.Close()

	root := tree.RootNode()
	out := p.newFileExtraction(filePath)

	p.extractTypes(root, source, out)
	p.extractFunctions(root, source, out)
	p.extractUses(root, source, out)
	p.extractCalls(root, source, out)
	collectErrors(root, out)

	return out, nil
}

func (p *rustParser) extractTypes(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		kind := n.Kind()
		if kind != "struct_item" && kind != "enum_item" && kind != "trait_item" {
			return true
		}

		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}

		out.Classes = append(out.Classes, extraction.ClassInfo{
			Name:      extractNodeText(nameNode, source),
			Exported:  findChildByType(n, "visibility_modifier") != nil,
			Abstract:  kind == "trait_item",
			StartLine: startLine(n),
			EndLine:   endLine(n),
		})
		return true
	})
}

func (p *rustParser) extractFunctions(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "function_item" {
			return true
		}

		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}

		name := extractNodeText(nameNode, source)
		qualified := name
		if impl := rustEnclosingImpl(n, source); impl != "" {
			qualified = impl + "." + name
		}

		fn := extraction.FunctionInfo{
			Name:          name,
			QualifiedName: qualified,
			Parameters:    p.extractParameters(n.ChildByFieldName("parameters"), source),
			Exported:      findChildByType(n, "visibility_modifier") != nil,
			Async:         rustIsAsync(n, source),
			Constructor:   name == "new",
			Decorators:    rustAttributes(n, source),
			StartLine:     startLine(n),
			EndLine:       endLine(n),
		}
		if rt := n.ChildByFieldName("return_type"); rt != nil {
			fn.ReturnType = extractNodeText(rt, source)
		}

		out.Functions = append(out.Functions, fn)
		return true
	})
}

func (p *rustParser) extractParameters(params *sitter.Node, source []byte) []extraction.Parameter {
	if params == nil {
		return nil
	}

	var result []extraction.Parameter
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(uint(i))
		if child.Kind() != "parameter" {
			continue
		}
		param := extraction.Parameter{}
		if pattern := child.ChildByFieldName("pattern"); pattern != nil {
			param.Name = extractNodeText(pattern, source)
		}
		if t := child.ChildByFieldName("type"); t != nil {
			param.Type = extractNodeText(t, source)
		}
		if param.Name != "" && param.Name != "self" && param.Name != "&self" && param.Name != "&mut self" {
			result = append(result, param)
		}
	}
	return result
}

func (p *rustParser) extractUses(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "use_declaration" {
			return true
		}

		arg := n.ChildByFieldName("argument")
		if arg == nil {
			return true
		}

		path := extractNodeText(arg, source)
		imp := extraction.ImportInfo{
			Source: path,
			Line:   startLine(n),
		}

		// "use a::b::{c, d}" binds c and d; "use a::b" binds b.
		if idx := strings.IndexByte(path, '{'); idx >= 0 {
			imp.Source = strings.TrimSuffix(strings.TrimSpace(path[:idx]), "::")
			inner := strings.Trim(path[idx:], "{}")
			for _, name := range strings.Split(inner, ",") {
				name = strings.TrimSpace(name)
				if name != "" && name != "*" && name != "self" {
					imp.Named = append(imp.Named, lastPathSegment(name))
				}
			}
		} else if strings.HasSuffix(path, "*") {
			imp.Namespace = "*"
		} else {
			imp.Named = []string{lastPathSegment(path)}
		}

		out.Imports = append(out.Imports, imp)
		return true
	})
}

func (p *rustParser) extractCalls(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "call_expression" {
			return true
		}

		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}

		call := extraction.CallSite{
			Line:   startLine(n),
			Column: startColumn(n),
		}
		if args := n.ChildByFieldName("arguments"); args != nil {
			call.ArgCount = int(args.NamedChildCount())
		}

		switch fn.Kind() {
		case "identifier":
			call.Callee = extractNodeText(fn, source)
		case "field_expression":
			field := fn.ChildByFieldName("field")
			value := fn.ChildByFieldName("value")
			if field == nil {
				return true
			}
			call.Callee = extractNodeText(field, source)
			call.Receiver = extractNodeText(value, source)
		case "scoped_identifier":
			name := fn.ChildByFieldName("name")
			path := fn.ChildByFieldName("path")
			if name == nil {
				return true
			}
			call.Callee = extractNodeText(name, source)
			call.Receiver = extractNodeText(path, source)
		default:
			return true
		}

		if call.Callee != "" {
			out.Calls = append(out.Calls, call)
		}
		return true
	})
}

// rustIsAsync reports whether a function_item carries the async keyword
// before its name.
func rustIsAsync(n *sitter.Node, source []byte) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(uint(i))
		if child.Kind() == "fn" {
			break
		}
		if extractNodeText(child, source) == "async" {
			return true
		}
	}
	return false
}

// rustAttributes collects #[attr] items preceding a function as decorators.
func rustAttributes(n *sitter.Node, source []byte) []string {
	var attrs []string
	for sib := n.PrevSibling(); sib != nil; sib = sib.PrevSibling() {
		switch sib.Kind() {
		case "attribute_item":
			text := strings.Trim(extractNodeText(sib, source), "#[]")
			if idx := strings.IndexByte(text, '('); idx > 0 {
				text = text[:idx]
			}
			if text != "" {
				attrs = append(attrs, "@"+text)
			}
		case "line_comment", "block_comment":
			continue
		default:
			reverse(attrs)
			return attrs
		}
	}
	reverse(attrs)
	return attrs
}

// rustEnclosingImpl climbs to the containing impl block's type name.
func rustEnclosingImpl(n *sitter.Node, source []byte) string {
	for parent := n.Parent(); parent != nil; parent = parent.Parent() {
		if parent.Kind() == "impl_item" {
			if t := parent.ChildByFieldName("type"); t != nil {
				return extractNodeText(t, source)
			}
			return ""
		}
	}
	return ""
}

// lastPathSegment returns the final "::"-separated segment.
func lastPathSegment(path string) string {
	if idx := strings.LastIndex(path, "::"); idx >= 0 {
		return path[idx+2:]
	}
	return path
}
