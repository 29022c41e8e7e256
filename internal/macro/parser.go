package macro

import (
	"path/filepath"
	"slices"
	"strings"

	"go.starlark.net/syntax"
)

// defKind is the statement form that binds a top-level name.
type defKind int

const (
	defFunction defKind = iota
	defAssign
	defLoad
)

// definition is everything static analysis learns about one top-level name.
type definition struct {
	Name      string
	Kind      defKind
	Line      int
	EndLine   int
	Params    []string // functions only, with defaults like "x=None"
	Docstring string
	Comments  []string
	Calls     []string // names called from a function body, in order of first use

	// load bindings only
	Module   string
	Original string
}

// Signature returns "name(params)" for functions and the bare name otherwise.
func (d *definition) Signature() string {
	if d.Kind != defFunction {
		return d.Name
	}
	return d.Name + "(" + strings.Join(d.Params, ", ") + ")"
}

// parsedFile is the static view of one .star file. It does not execute
// anything.
type parsedFile struct {
	Path    string
	Lines   []string
	Defs    map[string]*definition
	Modules []string // load() targets in order of appearance
}

// parseFile statically parses a .star file.
func parseFile(opts *syntax.FileOptions, path string, content []byte) (*parsedFile, error) {
	f, err := opts.Parse(path, content, syntax.RetainComments)
	if err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	pf := &parsedFile{
		Path:  path,
		Lines: strings.Split(string(content), "\n"),
		Defs:  make(map[string]*definition),
	}

	for _, stmt := range f.Stmts {
		start, end := stmt.Span()
		switch s := stmt.(type) {
		case *syntax.DefStmt:
			pf.add(&definition{
				Name:      s.Name.Name,
				Kind:      defFunction,
				Line:      int(start.Line),
				EndLine:   int(end.Line),
				Params:    extractArgs(s.Params),
				Docstring: extractDocstring(s.Body),
				Comments:  extractComments(s),
				Calls:     extractCalls(s.Body),
			})

		case *syntax.AssignStmt:
			for _, id := range assignedNames(s.LHS) {
				pf.add(&definition{
					Name:     id.Name,
					Kind:     defAssign,
					Line:     int(start.Line),
					EndLine:  int(end.Line),
					Comments: extractComments(s),
				})
			}

		case *syntax.LoadStmt:
			module, _ := s.Module.Value.(string)
			if !slices.Contains(pf.Modules, module) {
				pf.Modules = append(pf.Modules, module)
			}
			comments := extractComments(s)
			for i, to := range s.To {
				pf.add(&definition{
					Name:     to.Name,
					Kind:     defLoad,
					Line:     int(start.Line),
					EndLine:  int(end.Line),
					Comments: comments,
					Module:   module,
					Original: s.From[i].Name,
				})
			}
		}
	}

	return pf, nil
}

// add records d unless the name is already bound; the first binding is the
// one a reader looks for.
func (pf *parsedFile) add(d *definition) {
	if _, ok := pf.Defs[d.Name]; !ok {
		pf.Defs[d.Name] = d
	}
}

// Source returns the source text of lines [from, to], 1-based inclusive.
func (pf *parsedFile) Source(from, to int) string {
	if from < 1 || from > len(pf.Lines) {
		return ""
	}
	to = min(max(to, from), len(pf.Lines))
	return strings.Join(pf.Lines[from-1:to], "\n")
}

// namespaceOf returns the namespace name of a .star path.
func namespaceOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".star")
}

func assignedNames(lhs syntax.Expr) []*syntax.Ident {
	switch e := lhs.(type) {
	case *syntax.Ident:
		return []*syntax.Ident{e}
	case *syntax.TupleExpr:
		var out []*syntax.Ident
		for _, x := range e.List {
			out = append(out, assignedNames(x)...)
		}
		return out
	case *syntax.ListExpr:
		var out []*syntax.Ident
		for _, x := range e.List {
			out = append(out, assignedNames(x)...)
		}
		return out
	case *syntax.ParenExpr:
		return assignedNames(e.X)
	default:
		return nil
	}
}

// extractArgs converts syntax parameters to string representations.
func extractArgs(params []syntax.Expr) []string {
	var args []string
	for _, param := range params {
		switch p := param.(type) {
		case *syntax.Ident:
			// Simple parameter: def foo(x)
			args = append(args, p.Name)
		case *syntax.BinaryExpr:
			// Default parameter: def foo(x=1)
			if p.Op == syntax.EQ {
				if ident, ok := p.X.(*syntax.Ident); ok {
					args = append(args, ident.Name+"="+exprToString(p.Y))
				}
			}
		case *syntax.UnaryExpr:
			// *args, **kwargs or a bare * separating keyword-only params
			prefix := "*"
			if p.Op == syntax.STARSTAR {
				prefix = "**"
			}
			if ident, ok := p.X.(*syntax.Ident); ok {
				args = append(args, prefix+ident.Name)
			} else {
				args = append(args, prefix)
			}
		}
	}
	return args
}

// extractDocstring gets the docstring from function body if present.
func extractDocstring(body []syntax.Stmt) string {
	if len(body) == 0 {
		return ""
	}

	exprStmt, ok := body[0].(*syntax.ExprStmt)
	if !ok {
		return ""
	}

	lit, ok := exprStmt.X.(*syntax.Literal)
	if !ok || lit.Token != syntax.STRING {
		return ""
	}

	s, ok := lit.Value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// extractComments returns the whole-line comments above a statement and its
// end-of-line comment, without the leading '#'.
func extractComments(n syntax.Node) []string {
	c := n.Comments()
	if c == nil {
		return nil
	}
	var out []string
	for _, group := range [][]syntax.Comment{c.Before, c.Suffix} {
		for _, comment := range group {
			text := strings.TrimPrefix(comment.Text, "#")
			out = append(out, strings.TrimSpace(text))
		}
	}
	return out
}

// extractCalls lists the plain names called anywhere in body.
func extractCalls(body []syntax.Stmt) []string {
	var calls []string
	for _, stmt := range body {
		syntax.Walk(stmt, func(n syntax.Node) bool {
			call, ok := n.(*syntax.CallExpr)
			if !ok {
				return true
			}
			if id, ok := call.Fn.(*syntax.Ident); ok && !slices.Contains(calls, id.Name) {
				calls = append(calls, id.Name)
			}
			return true
		})
	}
	return calls
}

// exprToString converts a syntax expression to a string representation.
func exprToString(expr syntax.Expr) string {
	switch e := expr.(type) {
	case *syntax.Literal:
		return e.Raw
	case *syntax.Ident:
		return e.Name
	case *syntax.ListExpr:
		return "[]"
	case *syntax.DictExpr:
		return "{}"
	case *syntax.TupleExpr:
		return "()"
	case *syntax.UnaryExpr:
		if e.Op == syntax.MINUS {
			return "-" + exprToString(e.X)
		}
		return exprToString(e.X)
	default:
		return "..."
	}
}
