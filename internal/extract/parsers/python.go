package parsers

import (
	"context"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/callscope/callscope/internal/extract/extraction"
)

// PythonParser parses Python files.
type pythonParser struct {
	*treeSitterParser
}

// NewPythonParser creates a new Python parser.
func NewPythonParser() *pythonParser {
	lang := sitter.NewLanguage(python.Language())
	return &pythonParser{
		treeSitterParser: newTreeSitterParser(lang, "python"),
	}
}

// ParseFile parses a Python source file and extracts call-graph facts.
func (p *pythonParser) ParseFile(ctx context.Context, filePath string, source []byte) (*extraction.FileExtraction, error) {
	tree := p.parse(source)
	if tree == nil {
		return nil, nil // unparseable input
	}
	defer tree.Close()

	root := tree.RootNode()
	out := p.newFileExtraction(filePath)

	p.extractClasses(root, source, out)
	p.extractFunctions(root, source, out)
	p.extractImports(root, source, out)
	p.extractCalls(root, source, out)
	collectErrors(root, out)

	return out, nil
}

func (p *pythonParser) extractClasses(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "class_definition" {
			return true
		}

		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}

		name := extractNodeText(nameNode, source)
		class := extraction.ClassInfo{
			Name:       name,
			Exported:   !strings.HasPrefix(name, "_"),
			Decorators: pythonDecorators(n, source),
			StartLine:  startLine(n),
			EndLine:    endLine(n),
		}

		// Base classes: first base becomes Extends, the rest Implements.
		if bases := n.ChildByFieldName("superclasses"); bases != nil {
			for i := 0; i < int(bases.NamedChildCount()); i++ {
				base := extractNodeText(bases.NamedChild(uint(i)), source)
				if base == "" {
					continue
				}
				if class.Extends == "" {
					class.Extends = base
				} else {
					class.Implements = append(class.Implements, base)
				}
			}
		}

		out.Classes = append(out.Classes, class)
		return true
	})
}

func (p *pythonParser) extractFunctions(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "function_definition" {
			return true
		}

		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}

		name := extractNodeText(nameNode, source)
		qualified := name
		class := pythonEnclosingClass(n, source)
		if class != "" {
			qualified = class + "." + name
		}

		body := n.ChildByFieldName("body")
		fn := extraction.FunctionInfo{
			Name:          name,
			QualifiedName: qualified,
			Parameters:    p.extractParameters(n.ChildByFieldName("parameters"), source),
			Exported:      !strings.HasPrefix(name, "_") || name == "__init__",
			Async:         isAsyncDef(n, source),
			Generator:     containsYield(body, source),
			Constructor:   name == "__init__",
			Decorators:    pythonDecorators(n, source),
			DocComment:    pythonDocstring(body, source),
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

// extractParameters reads a parameters node, skipping self/cls.
func (p *pythonParser) extractParameters(params *sitter.Node, source []byte) []extraction.Parameter {
	if params == nil {
		return nil
	}

	var result []extraction.Parameter
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(uint(i))
		var param extraction.Parameter

		switch child.Kind() {
		case "identifier":
			param.Name = extractNodeText(child, source)
		case "typed_parameter":
			if id := firstNamedChild(child); id != nil {
				param.Name = extractNodeText(id, source)
			}
			if t := child.ChildByFieldName("type"); t != nil {
				param.Type = extractNodeText(t, source)
			}
		case "default_parameter", "typed_default_parameter":
			if name := child.ChildByFieldName("name"); name != nil {
				param.Name = extractNodeText(name, source)
			}
			if t := child.ChildByFieldName("type"); t != nil {
				param.Type = extractNodeText(t, source)
			}
			if v := child.ChildByFieldName("value"); v != nil {
				param.Default = extractNodeText(v, source)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			if id := firstNamedChild(child); id != nil {
				param.Name = extractNodeText(id, source)
				param.Rest = true
			}
		default:
			continue
		}

		if param.Name == "" || param.Name == "self" || param.Name == "cls" {
			continue
		}
		result = append(result, param)
	}
	return result
}

func (p *pythonParser) extractImports(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "import_statement":
			// "import a.b" or "import a.b as c": the bound name is the
			// alias when present, otherwise the module itself.
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(uint(i))
				imp := extraction.ImportInfo{Line: startLine(n)}
				switch child.Kind() {
				case "dotted_name":
					imp.Source = extractNodeText(child, source)
					imp.Namespace = imp.Source
				case "aliased_import":
					if name := child.ChildByFieldName("name"); name != nil {
						imp.Source = extractNodeText(name, source)
					}
					if alias := child.ChildByFieldName("alias"); alias != nil {
						imp.Namespace = extractNodeText(alias, source)
					}
				default:
					continue
				}
				if imp.Source != "" {
					out.Imports = append(out.Imports, imp)
				}
			}
		case "import_from_statement":
			imp := extraction.ImportInfo{Line: startLine(n)}
			if module := n.ChildByFieldName("module_name"); module != nil {
				imp.Source = extractNodeText(module, source)
			}
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(uint(i))
				switch child.Kind() {
				case "dotted_name":
					text := extractNodeText(child, source)
					if text != imp.Source {
						imp.Named = append(imp.Named, text)
					}
				case "aliased_import":
					if alias := child.ChildByFieldName("alias"); alias != nil {
						imp.Named = append(imp.Named, extractNodeText(alias, source))
					} else if name := child.ChildByFieldName("name"); name != nil {
						imp.Named = append(imp.Named, extractNodeText(name, source))
					}
				case "wildcard_import":
					imp.Namespace = "*"
				}
			}
			if imp.Source != "" {
				out.Imports = append(out.Imports, imp)
			}
		}
		return true
	})
}

func (p *pythonParser) extractCalls(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "call" {
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
		case "attribute":
			attr := fn.ChildByFieldName("attribute")
			obj := fn.ChildByFieldName("object")
			if attr == nil {
				return true
			}
			call.Callee = extractNodeText(attr, source)
			call.Receiver = extractNodeText(obj, source)
		case "subscript":
			call.Callee = extractNodeText(fn, source)
			if obj := fn.ChildByFieldName("value"); obj != nil {
				call.Receiver = extractNodeText(obj, source)
			}
		default:
			return true
		}

		if call.Callee != "" {
			out.Calls = append(out.Calls, call)
		}
		return true
	})
}

// pythonDecorators collects decorators from a decorated_definition wrapper.
func pythonDecorators(n *sitter.Node, source []byte) []string {
	parent := n.Parent()
	if parent == nil || parent.Kind() != "decorated_definition" {
		return nil
	}

	var decorators []string
	for _, dec := range findChildrenByType(parent, "decorator") {
		text := strings.TrimPrefix(extractNodeText(dec, source), "@")
		// Keep only the decorator name, dropping call arguments.
		if idx := strings.IndexByte(text, '('); idx > 0 {
			text = text[:idx]
		}
		if text != "" {
			decorators = append(decorators, "@"+text)
		}
	}
	return decorators
}

// pythonEnclosingClass climbs to the containing class definition, if any.
func pythonEnclosingClass(n *sitter.Node, source []byte) string {
	for parent := n.Parent(); parent != nil; parent = parent.Parent() {
		if parent.Kind() == "class_definition" {
			if name := parent.ChildByFieldName("name"); name != nil {
				return extractNodeText(name, source)
			}
			return ""
		}
	}
	return ""
}

// isAsyncDef reports whether a function_definition starts with "async def".
func isAsyncDef(n *sitter.Node, source []byte) bool {
	return strings.HasPrefix(extractNodeText(n, source), "async ")
}

// containsYield reports whether a function body contains a yield expression,
// without descending into nested function definitions.
func containsYield(body *sitter.Node, source []byte) bool {
	found := false
	walkTree(body, func(n *sitter.Node) bool {
		if found {
			return false
		}
		if n.Kind() == "function_definition" {
			return false
		}
		if n.Kind() == "yield" {
			found = true
			return false
		}
		return true
	})
	return found
}

// pythonDocstring returns the docstring from the first statement of a block.
func pythonDocstring(body *sitter.Node, source []byte) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Kind() != "expression_statement" {
		return ""
	}
	str := firstNamedChild(first)
	if str == nil || str.Kind() != "string" {
		return ""
	}
	text := extractNodeText(str, source)
	text = strings.Trim(text, `"'`)
	return strings.TrimSpace(text)
}
