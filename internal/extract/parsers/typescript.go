package parsers

import (
	"context"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/callscope/callscope/internal/extract/extraction"
)

// TypeScriptParser parses TypeScript files.
type typeScriptParser struct {
	*treeSitterParser
}

// NewTypeScriptParser creates a new TypeScript parser.
func NewTypeScriptParser() *typeScriptParser {
	lang := sitter.NewLanguage(typescript.LanguageTypescript())
	return &typeScriptParser{
		treeSitterParser: newTreeSitterParser(lang, "typescript"),
	}
}

// ParseFile parses a TypeScript source file and extracts call-graph facts.
func (p *typeScriptParser) ParseFile(ctx context.Context, filePath string, source []byte) (*extraction.FileExtraction, error) {
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
	p.extractExports(root, source, out)
	p.extractCalls(root, source, out)
	collectErrors(root, out)

	return out, nil
}

// extractClasses extracts class declarations, including abstract classes,
// which the grammar gives a distinct node kind.
func (p *typeScriptParser) extractClasses(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		kind := n.Kind()
		if kind != "class_declaration" && kind != "abstract_class_declaration" {
			return true
		}

		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}

		class := extraction.ClassInfo{
			Name:       extractNodeText(nameNode, source),
			Exported:   isExportedNode(n),
			Abstract:   kind == "abstract_class_declaration",
			Decorators: precedingDecorators(n, source),
			StartLine:  startLine(n),
			EndLine:    endLine(n),
		}

		if heritage := findChildByType(n, "class_heritage"); heritage != nil {
			if ext := findChildByType(heritage, "extends_clause"); ext != nil {
				if target := firstNamedChild(ext); target != nil {
					class.Extends = extractNodeText(target, source)
				}
			}
			if impl := findChildByType(heritage, "implements_clause"); impl != nil {
				for i := 0; i < int(impl.NamedChildCount()); i++ {
					class.Implements = append(class.Implements, extractNodeText(impl.NamedChild(uint(i)), source))
				}
			}
		}

		out.Classes = append(out.Classes, class)
		return true
	})
}

// extractFunctions extracts function declarations, class methods, and arrow
// functions bound to a variable.
func (p *typeScriptParser) extractFunctions(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "function_declaration", "generator_function_declaration":
			p.extractFunction(n, source, out)
		case "method_definition":
			p.extractMethod(n, source, out)
		case "variable_declarator":
			p.extractArrowBinding(n, source, out)
		}
		return true
	})
}

func (p *typeScriptParser) extractFunction(n *sitter.Node, source []byte, out *extraction.FileExtraction) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	name := extractNodeText(nameNode, source)
	text := extractNodeText(n, source)

	fn := extraction.FunctionInfo{
		Name:          name,
		QualifiedName: name,
		Parameters:    p.extractParameters(n.ChildByFieldName("parameters"), source),
		ReturnType:    returnTypeText(n, source),
		Exported:      isExportedNode(n),
		Async:         strings.HasPrefix(strings.TrimSpace(text), "async "),
		Generator:     n.Kind() == "generator_function_declaration" || strings.Contains(text, "function*"),
		Decorators:    precedingDecorators(n, source),
		DocComment:    precedingDocComment(n, source),
		StartLine:     startLine(n),
		EndLine:       endLine(n),
	}
	out.Functions = append(out.Functions, fn)
}

func (p *typeScriptParser) extractMethod(n *sitter.Node, source []byte, out *extraction.FileExtraction) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	name := extractNodeText(nameNode, source)
	qualified := name
	if class := enclosingClassName(n, source); class != "" {
		qualified = class + "." + name
	}

	text := extractNodeText(n, source)
	fn := extraction.FunctionInfo{
		Name:          name,
		QualifiedName: qualified,
		Parameters:    p.extractParameters(n.ChildByFieldName("parameters"), source),
		ReturnType:    returnTypeText(n, source),
		Exported:      methodVisibility(n, source),
		Async:         strings.HasPrefix(strings.TrimSpace(text), "async "),
		Generator:     strings.Contains(strings.SplitN(text, "(", 2)[0], "*"),
		Constructor:   name == "constructor",
		Decorators:    precedingDecorators(n, source),
		DocComment:    precedingDocComment(n, source),
		StartLine:     startLine(n),
		EndLine:       endLine(n),
	}
	out.Functions = append(out.Functions, fn)
}

// extractArrowBinding handles `const handler = async (req) => {...}` and
// `const fn = function() {...}` bindings, which register as functions under
// the variable's name.
func (p *typeScriptParser) extractArrowBinding(n *sitter.Node, source []byte, out *extraction.FileExtraction) {
	nameNode := n.ChildByFieldName("name")
	valueNode := n.ChildByFieldName("value")
	if nameNode == nil || valueNode == nil {
		return
	}

	kind := valueNode.Kind()
	if kind != "arrow_function" && kind != "function_expression" && kind != "generator_function" && kind != "function" {
		return
	}

	name := extractNodeText(nameNode, source)
	text := extractNodeText(valueNode, source)

	params := valueNode.ChildByFieldName("parameters")
	var parameters []extraction.Parameter
	if params != nil {
		parameters = p.extractParameters(params, source)
	} else if single := valueNode.ChildByFieldName("parameter"); single != nil {
		parameters = []extraction.Parameter{{Name: extractNodeText(single, source)}}
	}

	fn := extraction.FunctionInfo{
		Name:          name,
		QualifiedName: name,
		Parameters:    parameters,
		ReturnType:    returnTypeText(valueNode, source),
		Exported:      isExportedNode(declarationRoot(n)),
		Async:         strings.HasPrefix(strings.TrimSpace(text), "async"),
		Generator:     kind == "generator_function" || strings.Contains(text, "function*"),
		DocComment:    precedingDocComment(declarationRoot(n), source),
		StartLine:     startLine(valueNode),
		EndLine:       endLine(valueNode),
	}
	out.Functions = append(out.Functions, fn)
}

// extractParameters reads a formal_parameters node.
func (p *typeScriptParser) extractParameters(params *sitter.Node, source []byte) []extraction.Parameter {
	if params == nil {
		return nil
	}

	var result []extraction.Parameter
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(uint(i))
		switch child.Kind() {
		case "required_parameter", "optional_parameter":
			param := extraction.Parameter{}
			if pattern := child.ChildByFieldName("pattern"); pattern != nil {
				if pattern.Kind() == "rest_pattern" {
					param.Rest = true
					if inner := firstNamedChild(pattern); inner != nil {
						param.Name = extractNodeText(inner, source)
					}
				} else {
					param.Name = extractNodeText(pattern, source)
				}
			}
			if t := child.ChildByFieldName("type"); t != nil {
				param.Type = strings.TrimSpace(strings.TrimPrefix(extractNodeText(t, source), ":"))
			}
			if v := child.ChildByFieldName("value"); v != nil {
				param.Default = extractNodeText(v, source)
			}
			if param.Name != "" {
				result = append(result, param)
			}
		case "identifier":
			result = append(result, extraction.Parameter{Name: extractNodeText(child, source)})
		case "rest_pattern":
			if inner := firstNamedChild(child); inner != nil {
				result = append(result, extraction.Parameter{Name: extractNodeText(inner, source), Rest: true})
			}
		}
	}
	return result
}

// extractImports reads import statements including default, named, namespace,
// and type-only forms.
func (p *typeScriptParser) extractImports(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "import_statement" {
			return true
		}

		srcNode := n.ChildByFieldName("source")
		if srcNode == nil {
			return true
		}

		imp := extraction.ImportInfo{
			Source:   strings.Trim(extractNodeText(srcNode, source), `"'`),
			TypeOnly: strings.HasPrefix(extractNodeText(n, source), "import type"),
			Line:     startLine(n),
		}

		if clause := findChildByType(n, "import_clause"); clause != nil {
			for i := 0; i < int(clause.NamedChildCount()); i++ {
				child := clause.NamedChild(uint(i))
				switch child.Kind() {
				case "identifier":
					imp.Default = extractNodeText(child, source)
				case "namespace_import":
					if id := findChildByType(child, "identifier"); id != nil {
						imp.Namespace = extractNodeText(id, source)
					}
				case "named_imports":
					for _, spec := range findChildrenByType(child, "import_specifier") {
						// The local binding is what call sites reference.
						bound := spec.ChildByFieldName("alias")
						if bound == nil {
							bound = spec.ChildByFieldName("name")
						}
						if bound != nil {
							imp.Named = append(imp.Named, extractNodeText(bound, source))
						}
					}
				}
			}
		}

		out.Imports = append(out.Imports, imp)
		return true
	})
}

// extractExports reads export statements: declarations, clauses, defaults,
// and re-exports.
func (p *typeScriptParser) extractExports(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "export_statement" {
			return true
		}

		line := startLine(n)
		text := extractNodeText(n, source)
		typeOnly := strings.HasPrefix(text, "export type")
		isDefault := strings.HasPrefix(text, "export default")

		var fromSource string
		if srcNode := n.ChildByFieldName("source"); srcNode != nil {
			fromSource = strings.Trim(extractNodeText(srcNode, source), `"'`)
		}

		if decl := n.ChildByFieldName("declaration"); decl != nil {
			for _, name := range declarationNames(decl, source) {
				out.Exports = append(out.Exports, extraction.ExportInfo{
					Name:     name,
					Default:  isDefault,
					TypeOnly: typeOnly,
					Line:     line,
				})
			}
			return true
		}

		if clause := findChildByType(n, "export_clause"); clause != nil {
			for _, spec := range findChildrenByType(clause, "export_specifier") {
				nameNode := spec.ChildByFieldName("name")
				if nameNode == nil {
					continue
				}
				exp := extraction.ExportInfo{
					Name:       extractNodeText(nameNode, source),
					FromSource: fromSource,
					TypeOnly:   typeOnly,
					Line:       line,
				}
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					exp.OriginalName = exp.Name
					exp.Name = extractNodeText(alias, source)
				}
				out.Exports = append(out.Exports, exp)
			}
			return true
		}

		if isDefault {
			if value := n.ChildByFieldName("value"); value != nil && value.Kind() == "identifier" {
				out.Exports = append(out.Exports, extraction.ExportInfo{
					Name:    extractNodeText(value, source),
					Default: true,
					Line:    line,
				})
			}
		}
		return true
	})
}

// extractCalls reads call expressions. Direct calls record the identifier;
// member calls record the property as callee and the object as receiver;
// computed calls like obj[name]() keep their full text so resolution can
// classify them as dynamic.
func (p *typeScriptParser) extractCalls(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
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
		case "member_expression":
			prop := fn.ChildByFieldName("property")
			obj := fn.ChildByFieldName("object")
			if prop == nil {
				return true
			}
			call.Callee = extractNodeText(prop, source)
			call.Receiver = extractNodeText(obj, source)
		case "subscript_expression":
			call.Callee = extractNodeText(fn, source)
			if obj := fn.ChildByFieldName("object"); obj != nil {
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

// declarationNames pulls exportable names out of a declaration node.
func declarationNames(decl *sitter.Node, source []byte) []string {
	switch decl.Kind() {
	case "function_declaration", "generator_function_declaration", "class_declaration",
		"abstract_class_declaration", "interface_declaration", "type_alias_declaration", "enum_declaration":
		if name := decl.ChildByFieldName("name"); name != nil {
			return []string{extractNodeText(name, source)}
		}
	case "lexical_declaration", "variable_declaration":
		var names []string
		for _, d := range findChildrenByType(decl, "variable_declarator") {
			if name := d.ChildByFieldName("name"); name != nil {
				names = append(names, extractNodeText(name, source))
			}
		}
		return names
	}
	return nil
}

// returnTypeText reads the return_type field, trimming the leading colon.
func returnTypeText(n *sitter.Node, source []byte) string {
	rt := n.ChildByFieldName("return_type")
	if rt == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(extractNodeText(rt, source), ":"))
}

// isExportedNode reports whether a declaration sits inside an export statement.
func isExportedNode(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	parent := n.Parent()
	return parent != nil && parent.Kind() == "export_statement"
}

// declarationRoot climbs from a variable_declarator to its outer declaration
// statement.
func declarationRoot(n *sitter.Node) *sitter.Node {
	root := n
	for parent := n.Parent(); parent != nil; parent = parent.Parent() {
		kind := parent.Kind()
		if kind == "lexical_declaration" || kind == "variable_declaration" {
			root = parent
			break
		}
	}
	return root
}

// enclosingClassName climbs the parent chain to the containing class, if any.
func enclosingClassName(n *sitter.Node, source []byte) string {
	for parent := n.Parent(); parent != nil; parent = parent.Parent() {
		kind := parent.Kind()
		if kind == "class_declaration" || kind == "abstract_class_declaration" || kind == "class" {
			if name := parent.ChildByFieldName("name"); name != nil {
				return extractNodeText(name, source)
			}
			return ""
		}
	}
	return ""
}

// methodVisibility reports whether a method is public (the default when no
// accessibility modifier is present).
func methodVisibility(n *sitter.Node, source []byte) bool {
	if mod := findChildByType(n, "accessibility_modifier"); mod != nil {
		return extractNodeText(mod, source) == "public"
	}
	return true
}

// firstNamedChild returns the first named child of a node, or nil.
func firstNamedChild(n *sitter.Node) *sitter.Node {
	if n == nil || n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(0)
}

// JavaScriptParser parses JavaScript files.
type javaScriptParser struct {
	*treeSitterParser
}

// NewJavaScriptParser creates a new JavaScript parser.
func NewJavaScriptParser() *javaScriptParser {
	lang := sitter.NewLanguage(typescript.LanguageTypescript())
	return &javaScriptParser{
		treeSitterParser: newTreeSitterParser(lang, "javascript"),
	}
}

// ParseFile parses a JavaScript source file (reuses TypeScript logic, the
// grammars share an AST shape).
func (p *javaScriptParser) ParseFile(ctx context.Context, filePath string, source []byte) (*extraction.FileExtraction, error) {
	tsParser := &typeScriptParser{
		treeSitterParser: p.treeSitterParser,
	}
	out, err := tsParser.ParseFile(ctx, filePath, source)
	if out != nil {
		out.Language = "javascript"
	}
	return out, err
}
