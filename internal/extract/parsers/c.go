package parsers

import (
	"context"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"

	"github.com/callscope/callscope/internal/extract/extraction"
)

// CParser parses C files.
type cParser struct {
	*treeSitterParser
}

// NewCParser creates a new C parser.
func NewCParser() *cParser {
	lang := sitter.NewLanguage(c.Language())
	return &cParser{
		treeSitterParser: newTreeSitterParser(lang, "c"),
	}
}

// ParseFile parses a C source file and extracts call-graph facts.
func (p *cParser) ParseFile(ctx context.Context, filePath string, source []byte) (*extraction.FileExtraction, error) {
	tree := p.parse(source)
	if tree == nil {
		return nil, nil // unparseable input
	}
	defer tree.Close()

	root := tree.RootNode()
	out := p.newFileExtraction(filePath)

	p.extractTypes(root, source, out)
	p.extractFunctions(root, source, out)
	p.extractIncludes(root, source, out)
	p.extractCalls(root, source, out)
	collectErrors(root, out)

	return out, nil
}

func (p *cParser) extractTypes(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		kind := n.Kind()
		switch kind {
		case "struct_specifier", "union_specifier", "enum_specifier":
			nameNode := n.ChildByFieldName("name")
			// Skip bare references like "struct foo x;" that carry no body.
			if nameNode == nil || n.ChildByFieldName("body") == nil {
				return true
			}
			out.Classes = append(out.Classes, extraction.ClassInfo{
				Name:      extractNodeText(nameNode, source),
				Exported:  true,
				StartLine: startLine(n),
				EndLine:   endLine(n),
			})
		case "type_definition":
			if decl := n.ChildByFieldName("declarator"); decl != nil && decl.Kind() == "type_identifier" {
				out.Classes = append(out.Classes, extraction.ClassInfo{
					Name:      extractNodeText(decl, source),
					Exported:  true,
					StartLine: startLine(n),
					EndLine:   endLine(n),
				})
			}
			return false
		}
		return true
	})
}

func (p *cParser) extractFunctions(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "function_definition" {
			return true
		}

		declarator := functionDeclarator(n.ChildByFieldName("declarator"))
		if declarator == nil {
			return true
		}
		nameNode := declarator.ChildByFieldName("declarator")
		if nameNode == nil {
			return true
		}

		name := unwrapDeclaratorName(nameNode, source)
		if name == "" {
			return true
		}

		fn := extraction.FunctionInfo{
			Name:          name,
			QualifiedName: name,
			Parameters:    p.extractParameters(declarator.ChildByFieldName("parameters"), source),
			Exported:      !cIsStatic(n, source),
			StartLine:     startLine(n),
			EndLine:       endLine(n),
		}
		if t := n.ChildByFieldName("type"); t != nil {
			fn.ReturnType = extractNodeText(t, source)
		}

		out.Functions = append(out.Functions, fn)
		return true
	})
}

func (p *cParser) extractParameters(params *sitter.Node, source []byte) []extraction.Parameter {
	if params == nil {
		return nil
	}

	var result []extraction.Parameter
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(uint(i))
		switch child.Kind() {
		case "parameter_declaration":
			param := extraction.Parameter{}
			if t := child.ChildByFieldName("type"); t != nil {
				param.Type = extractNodeText(t, source)
			}
			if decl := child.ChildByFieldName("declarator"); decl != nil {
				param.Name = unwrapDeclaratorName(decl, source)
			}
			if param.Name == "" && param.Type == "void" {
				continue
			}
			result = append(result, param)
		case "variadic_parameter":
			result = append(result, extraction.Parameter{Name: "...", Rest: true})
		}
	}
	return result
}

func (p *cParser) extractIncludes(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "preproc_include" {
			return true
		}

		path := n.ChildByFieldName("path")
		if path == nil {
			return true
		}

		src := strings.Trim(extractNodeText(path, source), `"<>`)
		out.Imports = append(out.Imports, extraction.ImportInfo{
			Source: src,
			Line:   startLine(n),
		})
		return true
	})
}

func (p *cParser) extractCalls(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
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
			// Struct member call through a function pointer: obj->handler(x).
			field := fn.ChildByFieldName("field")
			arg := fn.ChildByFieldName("argument")
			if field == nil {
				return true
			}
			call.Callee = extractNodeText(field, source)
			call.Receiver = extractNodeText(arg, source)
		default:
			call.Callee = extractNodeText(fn, source)
		}

		if call.Callee != "" {
			out.Calls = append(out.Calls, call)
		}
		return true
	})
}

// functionDeclarator unwraps pointer declarators until the function
// declarator is reached, so "char *name(void)" resolves correctly.
func functionDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Kind() {
		case "function_declarator":
			return n
		case "pointer_declarator":
			n = n.ChildByFieldName("declarator")
		default:
			return nil
		}
	}
	return nil
}

// unwrapDeclaratorName digs through pointer and array declarators to the
// underlying identifier.
func unwrapDeclaratorName(n *sitter.Node, source []byte) string {
	for n != nil {
		switch n.Kind() {
		case "identifier", "field_identifier", "type_identifier":
			return extractNodeText(n, source)
		case "pointer_declarator", "array_declarator", "function_declarator":
			n = n.ChildByFieldName("declarator")
		default:
			return ""
		}
	}
	return ""
}

// cIsStatic reports whether a function definition has file-local linkage.
func cIsStatic(n *sitter.Node, source []byte) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(uint(i))
		if child.Kind() == "storage_class_specifier" && extractNodeText(child, source) == "static" {
			return true
		}
	}
	return false
}

// CPPParser parses C++ files with the C grammar, which handles the shared
// C-like subset. Template-heavy constructs fall through to the regex pass.
type cppParser struct {
	*treeSitterParser
}

// NewCPPParser creates a new C++ parser.
func NewCPPParser() *cppParser {
	lang := sitter.NewLanguage(c.Language())
	return &cppParser{
		treeSitterParser: newTreeSitterParser(lang, "cpp"),
	}
}

// ParseFile parses a C++ source file.
func (p *cppParser) ParseFile(ctx context.Context, filePath string, source []byte) (*extraction.FileExtraction, error) {
	cp := &cParser{treeSitterParser: p.treeSitterParser}
	out, err := cp.ParseFile(ctx, filePath, source)
	if out != nil {
		out.Language = "cpp"
	}
	return out, err
}
