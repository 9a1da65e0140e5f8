package parsers

import (
	"context"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"

	"github.com/callscope/callscope/internal/extract/extraction"
)

// JavaParser parses Java files.
type javaParser struct {
	*treeSitterParser
}

// NewJavaParser creates a new Java parser.
func NewJavaParser() *javaParser {
	lang := sitter.NewLanguage(java.Language())
	return &javaParser{
		treeSitterParser: newTreeSitterParser(lang, "java"),
	}
}

// ParseFile parses a Java source file and extracts call-graph facts.
func (p *javaParser) ParseFile(ctx context.Context, filePath string, source []byte) (*extraction.FileExtraction, error) {
	tree := p.parse(source)
	if tree == nil {
		return nil, nil // unparseable input
	}
	defer tree.Close()

	root := tree.RootNode()
	out := p.newFileExtraction(filePath)

	p.extractClasses(root, source, out)
	p.extractMethods(root, source, out)
	p.extractImports(root, source, out)
	p.extractCalls(root, source, out)
	collectErrors(root, out)

	return out, nil
}

func (p *javaParser) extractClasses(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		kind := n.Kind()
		if kind != "class_declaration" && kind != "interface_declaration" {
			return true
		}

		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}

		modifiers := findChildByType(n, "modifiers")
		class := extraction.ClassInfo{
			Name:       extractNodeText(nameNode, source),
			Exported:   javaIsPublic(modifiers, source),
			Abstract:   modifiers != nil && strings.Contains(extractNodeText(modifiers, source), "abstract"),
			Decorators: javaAnnotations(modifiers, source),
			StartLine:  startLine(n),
			EndLine:    endLine(n),
		}

		if super := findChildByType(n, "superclass"); super != nil {
			if t := firstNamedChild(super); t != nil {
				class.Extends = extractNodeText(t, source)
			}
		}
		for _, clause := range []string{"super_interfaces", "extends_interfaces"} {
			if ifaces := findChildByType(n, clause); ifaces != nil {
				if list := findChildByType(ifaces, "type_list"); list != nil {
					for i := 0; i < int(list.NamedChildCount()); i++ {
						class.Implements = append(class.Implements, extractNodeText(list.NamedChild(uint(i)), source))
					}
				}
			}
		}

		out.Classes = append(out.Classes, class)
		return true
	})
}

func (p *javaParser) extractMethods(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		kind := n.Kind()
		if kind != "method_declaration" && kind != "constructor_declaration" {
			return true
		}

		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}

		name := extractNodeText(nameNode, source)
		qualified := name
		if class := javaEnclosingType(n, source); class != "" {
			qualified = class + "." + name
		}

		modifiers := findChildByType(n, "modifiers")
		fn := extraction.FunctionInfo{
			Name:          name,
			QualifiedName: qualified,
			Parameters:    p.extractParameters(n.ChildByFieldName("parameters"), source),
			Exported:      javaIsPublic(modifiers, source),
			Constructor:   kind == "constructor_declaration",
			Decorators:    javaAnnotations(modifiers, source),
			DocComment:    precedingDocComment(n, source),
			StartLine:     startLine(n),
			EndLine:       endLine(n),
		}
		if rt := n.ChildByFieldName("type"); rt != nil {
			fn.ReturnType = extractNodeText(rt, source)
		}

		out.Functions = append(out.Functions, fn)
		return true
	})
}

func (p *javaParser) extractParameters(params *sitter.Node, source []byte) []extraction.Parameter {
	if params == nil {
		return nil
	}

	var result []extraction.Parameter
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(uint(i))
		kind := child.Kind()
		if kind != "formal_parameter" && kind != "spread_parameter" {
			continue
		}

		param := extraction.Parameter{Rest: kind == "spread_parameter"}
		if name := child.ChildByFieldName("name"); name != nil {
			param.Name = extractNodeText(name, source)
		} else if id := findChildByType(child, "identifier"); id != nil {
			param.Name = extractNodeText(id, source)
		}
		if t := child.ChildByFieldName("type"); t != nil {
			param.Type = extractNodeText(t, source)
		}
		if param.Name != "" {
			result = append(result, param)
		}
	}
	return result
}

func (p *javaParser) extractImports(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "import_declaration" {
			return true
		}

		scoped := findChildByType(n, "scoped_identifier")
		if scoped == nil {
			return true
		}

		// "import com.example.Service" binds the simple class name.
		full := extractNodeText(scoped, source)
		imp := extraction.ImportInfo{
			Source: full,
			Line:   startLine(n),
		}
		if idx := strings.LastIndexByte(full, '.'); idx >= 0 && idx < len(full)-1 {
			imp.Named = []string{full[idx+1:]}
		}
		out.Imports = append(out.Imports, imp)
		return true
	})
}

func (p *javaParser) extractCalls(root *sitter.Node, source []byte, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "method_invocation" {
			return true
		}

		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}

		call := extraction.CallSite{
			Callee: extractNodeText(nameNode, source),
			Line:   startLine(n),
			Column: startColumn(n),
		}
		if obj := n.ChildByFieldName("object"); obj != nil {
			call.Receiver = extractNodeText(obj, source)
		}
		if args := n.ChildByFieldName("arguments"); args != nil {
			call.ArgCount = int(args.NamedChildCount())
		}

		out.Calls = append(out.Calls, call)
		return true
	})
}

// javaAnnotations collects "@Name" annotations from a modifiers node.
func javaAnnotations(modifiers *sitter.Node, source []byte) []string {
	if modifiers == nil {
		return nil
	}

	var annotations []string
	for i := 0; i < int(modifiers.NamedChildCount()); i++ {
		child := modifiers.NamedChild(uint(i))
		kind := child.Kind()
		if kind != "marker_annotation" && kind != "annotation" {
			continue
		}
		if name := child.ChildByFieldName("name"); name != nil {
			annotations = append(annotations, "@"+extractNodeText(name, source))
		}
	}
	return annotations
}

// javaIsPublic reports whether modifiers contain "public".
func javaIsPublic(modifiers *sitter.Node, source []byte) bool {
	if modifiers == nil {
		return false
	}
	return strings.Contains(extractNodeText(modifiers, source), "public")
}

// javaEnclosingType climbs to the containing class or interface name.
func javaEnclosingType(n *sitter.Node, source []byte) string {
	for parent := n.Parent(); parent != nil; parent = parent.Parent() {
		kind := parent.Kind()
		if kind == "class_declaration" || kind == "interface_declaration" || kind == "enum_declaration" {
			if name := parent.ChildByFieldName("name"); name != nil {
				return extractNodeText(name, source)
			}
			return ""
		}
	}
	return ""
}
