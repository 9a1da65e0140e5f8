package parsers

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/callscope/callscope/internal/extract/extraction"
)

// GoParser parses Go files using the standard library AST instead of a
// tree-sitter grammar.
type goParser struct{}

// NewGoParser creates a new Go parser.
func NewGoParser() *goParser {
	return &goParser{}
}

// Language returns the language tag this parser handles.
func (p *goParser) Language() string {
	return "go"
}

// ParseFile parses a Go source file and extracts call-graph facts.
func (p *goParser) ParseFile(ctx context.Context, filePath string, source []byte) (*extraction.FileExtraction, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, source, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	out := &extraction.FileExtraction{
		Path:     filePath,
		Language: "go",
	}

	for _, imp := range file.Imports {
		p.processImport(imp, fset, out)
	}

	ast.Inspect(file, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.FuncDecl:
			p.processFuncDecl(node, fset, source, out)
		case *ast.GenDecl:
			p.processGenDecl(node, fset, out)
		case *ast.CallExpr:
			p.processCallExpr(node, fset, source, out)
		}
		return true
	})

	return out, nil
}

func (p *goParser) processImport(imp *ast.ImportSpec, fset *token.FileSet, out *extraction.FileExtraction) {
	source := strings.Trim(imp.Path.Value, `"`)
	info := extraction.ImportInfo{
		Source: source,
		Line:   fset.Position(imp.Pos()).Line,
	}
	if imp.Name != nil {
		info.Namespace = imp.Name.Name
	} else if idx := strings.LastIndexByte(source, '/'); idx >= 0 {
		info.Namespace = source[idx+1:]
	} else {
		info.Namespace = source
	}
	out.Imports = append(out.Imports, info)
}

func (p *goParser) processFuncDecl(decl *ast.FuncDecl, fset *token.FileSet, source []byte, out *extraction.FileExtraction) {
	name := decl.Name.Name
	qualified := name
	if decl.Recv != nil && len(decl.Recv.List) > 0 {
		if recv := receiverTypeName(decl.Recv.List[0].Type); recv != "" {
			qualified = recv + "." + name
		}
	}

	fn := extraction.FunctionInfo{
		Name:          name,
		QualifiedName: qualified,
		Exported:      ast.IsExported(name),
		StartLine:     fset.Position(decl.Pos()).Line,
		EndLine:       fset.Position(decl.End()).Line,
	}
	if decl.Doc != nil {
		fn.DocComment = strings.TrimSpace(decl.Doc.Text())
	}

	if decl.Type.Params != nil {
		for _, field := range decl.Type.Params.List {
			typeText := exprText(fset, source, field.Type)
			if len(field.Names) == 0 {
				fn.Parameters = append(fn.Parameters, extraction.Parameter{Type: typeText})
				continue
			}
			for _, ident := range field.Names {
				fn.Parameters = append(fn.Parameters, extraction.Parameter{
					Name: ident.Name,
					Type: typeText,
				})
			}
		}
	}

	if decl.Type.Results != nil && len(decl.Type.Results.List) > 0 {
		var results []string
		for _, field := range decl.Type.Results.List {
			results = append(results, exprText(fset, source, field.Type))
		}
		if len(results) == 1 {
			fn.ReturnType = results[0]
		} else {
			fn.ReturnType = "(" + strings.Join(results, ", ") + ")"
		}
	}

	out.Functions = append(out.Functions, fn)
}

func (p *goParser) processGenDecl(decl *ast.GenDecl, fset *token.FileSet, out *extraction.FileExtraction) {
	if decl.Tok != token.TYPE {
		return
	}
	for _, spec := range decl.Specs {
		typeSpec, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}
		switch typeSpec.Type.(type) {
		case *ast.StructType, *ast.InterfaceType:
			out.Classes = append(out.Classes, extraction.ClassInfo{
				Name:      typeSpec.Name.Name,
				Exported:  ast.IsExported(typeSpec.Name.Name),
				StartLine: fset.Position(typeSpec.Pos()).Line,
				EndLine:   fset.Position(typeSpec.End()).Line,
			})
		}
	}
}

func (p *goParser) processCallExpr(call *ast.CallExpr, fset *token.FileSet, source []byte, out *extraction.FileExtraction) {
	pos := fset.Position(call.Pos())
	site := extraction.CallSite{
		ArgCount: len(call.Args),
		Line:     pos.Line,
		Column:   pos.Column,
	}

	switch fn := call.Fun.(type) {
	case *ast.Ident:
		site.Callee = fn.Name
	case *ast.SelectorExpr:
		site.Callee = fn.Sel.Name
		site.Receiver = exprText(fset, source, fn.X)
	case *ast.IndexExpr:
		// Calls through an indexed expression keep their full text so
		// resolution can classify them as computed.
		site.Callee = exprText(fset, source, fn)
		site.Receiver = exprText(fset, source, fn.X)
	default:
		return
	}

	if site.Callee != "" {
		out.Calls = append(out.Calls, site)
	}
}

// receiverTypeName extracts the bare type name from a method receiver.
func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	}
	return ""
}

// exprText slices the original source for an expression's text.
func exprText(fset *token.FileSet, source []byte, node ast.Node) string {
	start := fset.Position(node.Pos()).Offset
	end := fset.Position(node.End()).Offset
	if start < 0 || end > len(source) || start >= end {
		return ""
	}
	return string(source[start:end])
}
