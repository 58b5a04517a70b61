// Package locate finds reloadable fragments in a parsed script and isolates
// their source text so they can be recompiled as standalone units.
//
// A loop opts in by iterating a call to the reloading entry point:
//
//	for (const x of reloading(values)) { ... }
//
// A function opts in by wrapping a named function expression in a call chain
// that includes the entry point:
//
//	const f = trace(reloading(memo(function f(x) { ... })));
//
// Loops are re-found across edits by a fingerprint of their header, so the
// body can change freely without losing track of which loop is which.
package locate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
)

// EntryName is the identifier scripts call to opt a fragment into reloading.
const EntryName = "reloading"

// LoopID fingerprints a loop by the normalized source text of its iteration
// target and iterable expressions. Edits confined to the loop body leave the
// fingerprint unchanged; edits to the header produce a new one.
type LoopID string

// Fragment is an isolated loop fragment ready for compilation. Body is
// padded with leading newlines so compiled line numbers match the file.
type Fragment struct {
	Body   string
	Target string
	ID     LoopID
}

// NotFoundError reports that fragment lookup did not return exactly one
// match.
type NotFoundError struct {
	Ambiguous bool
}

func (e *NotFoundError) Error() string {
	if e.Ambiguous {
		return "the reloading loop is ambiguous: use " + EntryName + " once per line and keep that line unique within the file"
	}
	return "could not locate the reloading loop: make sure the line that uses " + EntryName + " does not change between reloads"
}

// Loop finds the single opted-in loop identified by id, or by line when no
// identity has been established yet (id empty). It returns the isolated
// body, the formatted iteration target, and the loop's identity for
// subsequent lookups.
func Loop(program *ast.Program, text string, id LoopID, line int) (Fragment, error) {
	var matches []*ast.ForOfStatement
	eachStatement(program.Body, func(stmt ast.Statement) {
		loop, ok := stmt.(*ast.ForOfStatement)
		if !ok {
			return
		}
		call, ok := entryCall(loop.Source)
		if !ok {
			return
		}
		if id != "" {
			if loopID(text, loop) == id {
				matches = append(matches, loop)
			}
			return
		}
		if lineAt(text, offset(call.Idx0())) == line {
			matches = append(matches, loop)
		}
	})

	if len(matches) > 1 {
		return Fragment{}, &NotFoundError{Ambiguous: true}
	}
	if len(matches) == 0 {
		return Fragment{}, &NotFoundError{}
	}

	loop := matches[0]
	target, err := FormatTarget(intoTarget(loop.Into))
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{
		Body:   bodyText(text, loop.Body),
		Target: target,
		ID:     loopID(text, loop),
	}, nil
}

// Function finds the named function carrying the reloading marker and
// returns the source text of the marker call's argument, with the marker
// and every wrapper outside it stripped. Wrappers inside the marker are
// kept. The text is padded so compiled line numbers match the file. The
// second return is false when no such function exists, in which case the
// caller keeps whatever version it already has.
func Function(program *ast.Program, text, name string) (string, bool) {
	var found ast.Expression
	eachStatement(program.Body, func(stmt ast.Statement) {
		if found != nil {
			return
		}
		for _, expr := range statementExpressions(stmt) {
			if inner, ok := markedFunction(expr, name); ok {
				found = inner
				return
			}
		}
	})
	if found == nil {
		return "", false
	}
	return pad(text, offset(found.Idx0())) + slice(text, found), true
}

// FormatTarget renders an iteration target as an assignment-target
// expression: a bare name for identifiers, bracketed and comma-joined for
// arbitrarily nested array destructuring.
func FormatTarget(target ast.Expression) (string, error) {
	switch node := target.(type) {
	case *ast.Identifier:
		return string(node.Name), nil
	case *ast.ArrayPattern:
		return formatElements(node.Elements, node.Rest)
	case *ast.ArrayLiteral:
		return formatElements(node.Value, nil)
	default:
		return "", fmt.Errorf("unsupported iteration target %T", target)
	}
}

func formatElements(elements []ast.Expression, rest ast.Expression) (string, error) {
	parts := make([]string, 0, len(elements)+1)
	for _, element := range elements {
		if element == nil {
			parts = append(parts, "")
			continue
		}
		formatted, err := FormatTarget(element)
		if err != nil {
			return "", err
		}
		parts = append(parts, formatted)
	}
	if rest != nil {
		formatted, err := FormatTarget(rest)
		if err != nil {
			return "", err
		}
		parts = append(parts, "..."+formatted)
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}

// entryCall matches a direct call to the reloading entry point.
func entryCall(expr ast.Expression) (*ast.CallExpression, bool) {
	call, ok := expr.(*ast.CallExpression)
	if !ok {
		return nil, false
	}
	callee, ok := call.Callee.(*ast.Identifier)
	if !ok || string(callee.Name) != EntryName {
		return nil, false
	}
	return call, true
}

// markedFunction descends expr looking for an entry-point call whose first
// argument chain contains a function literal named name. It returns that
// first argument: everything inside the marker, nothing outside it.
func markedFunction(expr ast.Expression, name string) (ast.Expression, bool) {
	switch node := expr.(type) {
	case *ast.CallExpression:
		if _, ok := entryCall(node); ok {
			if len(node.ArgumentList) > 0 && containsNamedFunction(node.ArgumentList[0], name) {
				return node.ArgumentList[0], true
			}
		}
		// Curried form: reloading({ every: n })(function name() { ... }).
		if callee, ok := node.Callee.(*ast.CallExpression); ok {
			if _, isEntry := entryCall(callee); isEntry &&
				len(node.ArgumentList) > 0 && containsNamedFunction(node.ArgumentList[0], name) {
				return node.ArgumentList[0], true
			}
		}
		for _, arg := range node.ArgumentList {
			if inner, ok := markedFunction(arg, name); ok {
				return inner, true
			}
		}
		return markedFunction(node.Callee, name)
	case *ast.AssignExpression:
		return markedFunction(node.Right, name)
	}
	return nil, false
}

// containsNamedFunction reports whether expr is, or wraps through call
// arguments, a function literal with the given name.
func containsNamedFunction(expr ast.Expression, name string) bool {
	switch node := expr.(type) {
	case *ast.FunctionLiteral:
		return node.Name != nil && string(node.Name.Name) == name
	case *ast.CallExpression:
		for _, arg := range node.ArgumentList {
			if containsNamedFunction(arg, name) {
				return true
			}
		}
	}
	return false
}

// loopID fingerprints the loop header. Whitespace is normalized so
// reformatting alone does not change identity.
func loopID(text string, loop *ast.ForOfStatement) LoopID {
	return LoopID(normalize(slice(text, loop.Into)) + "__" + normalize(slice(text, loop.Source)))
}

func intoTarget(into ast.ForInto) ast.Expression {
	switch node := into.(type) {
	case *ast.ForIntoExpression:
		return node.Expression
	case *ast.ForIntoVar:
		return node.Binding.Target
	case *ast.ForDeclaration:
		return node.Target
	}
	return nil
}

// bodyText isolates the statements of a loop body, dropping the braces of a
// block body, and pads the result so line numbers survive compilation.
func bodyText(text string, body ast.Statement) string {
	if block, ok := body.(*ast.BlockStatement); ok {
		start := offset(block.LeftBrace) + 1
		end := offset(block.RightBrace)
		return pad(text, offset(block.LeftBrace)) + text[start:end]
	}
	return pad(text, offset(body.Idx0())) + slice(text, body)
}

func statementExpressions(stmt ast.Statement) []ast.Expression {
	switch node := stmt.(type) {
	case *ast.ExpressionStatement:
		return []ast.Expression{node.Expression}
	case *ast.VariableStatement:
		return bindingInitializers(node.List)
	case *ast.LexicalDeclaration:
		return bindingInitializers(node.List)
	case *ast.ReturnStatement:
		if node.Argument != nil {
			return []ast.Expression{node.Argument}
		}
	}
	return nil
}

func bindingInitializers(list []*ast.Binding) []ast.Expression {
	var exprs []ast.Expression
	for _, binding := range list {
		if binding.Initializer != nil {
			exprs = append(exprs, binding.Initializer)
		}
	}
	return exprs
}

// eachStatement visits every statement in the list, descending into nested
// blocks, control flow, and function bodies.
func eachStatement(list []ast.Statement, visit func(ast.Statement)) {
	for _, stmt := range list {
		visitStatement(stmt, visit)
	}
}

func visitStatement(stmt ast.Statement, visit func(ast.Statement)) {
	if stmt == nil {
		return
	}
	visit(stmt)
	switch node := stmt.(type) {
	case *ast.BlockStatement:
		eachStatement(node.List, visit)
	case *ast.IfStatement:
		visitStatement(node.Consequent, visit)
		visitStatement(node.Alternate, visit)
	case *ast.ForStatement:
		visitStatement(node.Body, visit)
	case *ast.ForInStatement:
		visitStatement(node.Body, visit)
	case *ast.ForOfStatement:
		visitStatement(node.Body, visit)
	case *ast.WhileStatement:
		visitStatement(node.Body, visit)
	case *ast.DoWhileStatement:
		visitStatement(node.Body, visit)
	case *ast.WithStatement:
		visitStatement(node.Body, visit)
	case *ast.LabelledStatement:
		visitStatement(node.Statement, visit)
	case *ast.TryStatement:
		if node.Body != nil {
			eachStatement(node.Body.List, visit)
		}
		if node.Catch != nil && node.Catch.Body != nil {
			eachStatement(node.Catch.Body.List, visit)
		}
		if node.Finally != nil {
			eachStatement(node.Finally.List, visit)
		}
	case *ast.SwitchStatement:
		for _, clause := range node.Body {
			eachStatement(clause.Consequent, visit)
		}
	case *ast.FunctionDeclaration:
		if node.Function != nil {
			visitStatement(node.Function.Body, visit)
		}
	}
}

// offset converts a 1-based parser index into a byte offset.
func offset(idx file.Idx) int {
	return int(idx) - 1
}

func slice(text string, node ast.Node) string {
	start, end := offset(node.Idx0()), offset(node.Idx1())
	if start < 0 || end > len(text) || start > end {
		return ""
	}
	return text[start:end]
}

func lineAt(text string, off int) int {
	if off > len(text) {
		off = len(text)
	}
	return 1 + strings.Count(text[:off], "\n")
}

func pad(text string, off int) string {
	return strings.Repeat("\n", lineAt(text, off)-1)
}

func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
