package validator

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Expr is the reduced view of a Python expression used for namespace
// matching. Only the shapes the checks care about are distinguished;
// everything else is kept as normalized source text.
type Expr interface {
	// Render returns the canonical dotted text form of the expression.
	Render() string
	exprNode()
}

// Name is a bare identifier such as `allure`.
type Name struct {
	ID string
}

// Attribute is an attribute access `Object.Attr`.
type Attribute struct {
	Object Expr
	Attr   string
}

// Call is a call expression. Args keeps the normalized argument text so
// that a nested `allure.step(...)` argument still renders.
type Call struct {
	Func Expr
	Args string
}

// Other is any expression shape not modelled above.
type Other struct {
	Text string
}

func (Name) exprNode()      {}
func (Attribute) exprNode() {}
func (Call) exprNode()      {}
func (Other) exprNode()     {}

func (n Name) Render() string { return n.ID }

func (a Attribute) Render() string { return a.Object.Render() + "." + a.Attr }

func (c Call) Render() string { return c.Func.Render() + "(" + c.Args + ")" }

func (o Other) Render() string { return o.Text }

// convertExpr lowers a tree-sitter expression node into an Expr.
func convertExpr(n *sitter.Node, src []byte) Expr {
	if n == nil {
		return Other{}
	}

	switch n.Type() {
	case "identifier":
		return Name{ID: n.Content(src)}

	case "attribute":
		obj := n.ChildByFieldName("object")
		attr := n.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return Other{Text: normalize(n.Content(src))}
		}
		return Attribute{Object: convertExpr(obj, src), Attr: attr.Content(src)}

	case "call":
		return Call{
			Func: convertExpr(n.ChildByFieldName("function"), src),
			Args: callArgs(n.ChildByFieldName("arguments"), src),
		}

	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return convertExpr(n.NamedChild(0), src)
		}

	case "as_pattern":
		// `with allure.step("x") as s` keeps the guard as the first child.
		if n.NamedChildCount() > 0 {
			return convertExpr(n.NamedChild(0), src)
		}
	}

	return Other{Text: normalize(n.Content(src))}
}

// callArgs returns the argument text without the enclosing parentheses.
func callArgs(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	text := n.Content(src)
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		text = text[1 : len(text)-1]
	}
	return normalize(text)
}

// normalize collapses all whitespace runs so multi-line expressions render
// on one line.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
