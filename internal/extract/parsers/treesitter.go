package parsers

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/callscope/callscope/internal/extract/extraction"
)

// treeSitterParser provides common tree-sitter parsing functionality shared
// by every grammar-backed language parser.
type treeSitterParser struct {
	language *sitter.Language
	lang     string
}

// newTreeSitterParser creates a new tree-sitter parser for the given language.
func newTreeSitterParser(language *sitter.Language, lang string) *treeSitterParser {
	return &treeSitterParser{
		language: language,
		lang:     lang,
	}
}

// Language returns the language tag this parser handles.
func (p *treeSitterParser) Language() string {
	return p.lang
}

// parse runs the grammar over source and returns the syntax tree. The caller
// owns the tree and must Close it.
func (p *treeSitterParser) parse(source []byte) *sitter.Tree {
	parser := sitter.NewParser()
	defer parser.Close()

	parser.SetLanguage(p.language)
	return parser.Parse(source, nil)
}

// newFileExtraction creates an empty extraction for this parser's language.
func (p *treeSitterParser) newFileExtraction(path string) *extraction.FileExtraction {
	return &extraction.FileExtraction{
		Path:     path,
		Language: p.lang,
	}
}

// collectErrors records one ParseError per ERROR node in the tree.
func collectErrors(root *sitter.Node, out *extraction.FileExtraction) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.IsError() {
			out.Errors = append(out.Errors, extraction.ParseError{
				Message: "syntax error",
				Line:    startLine(n),
			})
			return false
		}
		return true
	})
}

// extractNodeText extracts the text content of a tree-sitter node.
func extractNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// startLine returns the 1-indexed start line of a node.
func startLine(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

// endLine returns the 1-indexed end line of a node.
func endLine(node *sitter.Node) int {
	return int(node.EndPosition().Row) + 1
}

// startColumn returns the 1-indexed start column of a node.
func startColumn(node *sitter.Node) int {
	return int(node.StartPosition().Column) + 1
}

// walkTree recursively walks a tree-sitter tree and calls the visitor for
// each node. Returning false from the visitor skips the node's children.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}

	if !visitor(node) {
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		walkTree(child, visitor)
	}
}

// findChildByType finds the first child node with the given type.
func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	if node == nil {
		return nil
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() == nodeType {
			return child
		}
	}
	return nil
}

// findChildrenByType finds all child nodes with the given type.
func findChildrenByType(node *sitter.Node, nodeType string) []*sitter.Node {
	var results []*sitter.Node
	if node == nil {
		return results
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() == nodeType {
			results = append(results, child)
		}
	}
	return results
}

// precedingDecorators collects "@Name" decorator strings attached to a node,
// checking decorator children first, then preceding siblings (how tree-sitter
// attaches decorators varies by grammar).
func precedingDecorators(node *sitter.Node, source []byte) []string {
	var decorators []string

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() == "decorator" {
			if name := decoratorName(child, source); name != "" {
				decorators = append(decorators, name)
			}
		}
	}
	if len(decorators) > 0 {
		return decorators
	}

	for sib := node.PrevSibling(); sib != nil; sib = sib.PrevSibling() {
		switch sib.Kind() {
		case "decorator":
			if name := decoratorName(sib, source); name != "" {
				decorators = append(decorators, name)
			}
		case "comment":
			continue
		default:
			reverse(decorators)
			return decorators
		}
	}
	reverse(decorators)
	return decorators
}

// decoratorName extracts the "@Name" form from a decorator node, looking
// through call expressions like "@Controller('users')".
func decoratorName(node *sitter.Node, source []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "call_expression":
			fn := child.ChildByFieldName("function")
			if fn == nil {
				fn = findChildByType(child, "identifier")
			}
			if fn != nil {
				return "@" + extractNodeText(fn, source)
			}
		case "identifier", "member_expression", "attribute", "scoped_identifier":
			return "@" + extractNodeText(child, source)
		}
	}
	return ""
}

// precedingDocComment returns the block comment immediately above a node,
// stripped of comment markers, or empty if none.
func precedingDocComment(node *sitter.Node, source []byte) string {
	for sib := node.PrevSibling(); sib != nil; sib = sib.PrevSibling() {
		if sib.Kind() == "comment" {
			text := extractNodeText(sib, source)
			if strings.HasPrefix(text, "/**") && strings.HasSuffix(text, "*/") {
				return cleanBlockComment(text)
			}
			return ""
		}
		if sib.Kind() != "decorator" {
			return ""
		}
	}
	return ""
}

// cleanBlockComment strips /** */ markers and leading asterisks.
func cleanBlockComment(text string) string {
	text = strings.TrimPrefix(text, "/**")
	text = strings.TrimSuffix(text, "*/")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "*")
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func reverse(items []string) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
