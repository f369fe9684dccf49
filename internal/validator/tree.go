package validator

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// TreeFindings is the outcome of the syntax-tree pass.
type TreeFindings struct {
	DecoratorPresent  bool
	StepPresent       bool
	AttachmentPresent bool
}

func (f TreeFindings) complete() bool {
	return f.DecoratorPresent && f.StepPresent && f.AttachmentPresent
}

// SyntaxError locates the first syntax error in a candidate.
// It matches ErrParseFailure under errors.Is.
type SyntaxError struct {
	Line   int    // 1-indexed
	Column int    // 1-indexed, in bytes
	Reason string // empty for plain grammar errors
}

func (e *SyntaxError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid syntax at line %d, column %d: %s", e.Line, e.Column, e.Reason)
	}
	return fmt.Sprintf("invalid syntax at line %d, column %d", e.Line, e.Column)
}

func (e *SyntaxError) Unwrap() error { return ErrParseFailure }

// InspectTree runs the syntax-tree pass over source.
// A candidate that does not parse yields an error matching ErrParseFailure
// and no findings. A cancelled ctx yields ctx.Err().
func InspectTree(ctx context.Context, source string, opts Options) (TreeFindings, error) {
	if len(source) == 0 {
		// An empty module is valid Python with nothing in it.
		return TreeFindings{}, nil
	}
	opts = opts.withDefaults()
	src := []byte(source)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return TreeFindings{}, ctxErr
		}
		return TreeFindings{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return TreeFindings{}, locateError(root)
	}
	if err := rejectInvalid(root); err != nil {
		return TreeFindings{}, err
	}

	m := newMatcher(opts)
	var findings TreeFindings

	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if findings.complete() {
			return
		}

		switch n.Type() {
		case "decorated_definition":
			if def := n.ChildByFieldName("definition"); def != nil && def.Type() == "function_definition" {
				for _, deco := range decorators(n) {
					if m.decorator(convertExpr(deco, src)) {
						findings.DecoratorPresent = true
					}
				}
			}

		case "with_statement":
			for _, guard := range withGuards(n) {
				if m.step(convertExpr(guard, src)) {
					findings.StepPresent = true
				}
			}

		case "call":
			if m.attach(convertExpr(n.ChildByFieldName("function"), src)) {
				findings.AttachmentPresent = true
			}
		}

		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)

	return findings, nil
}

// decorators returns the expression of every decorator on a decorated
// definition.
func decorators(n *sitter.Node) []*sitter.Node {
	var exprs []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "decorator" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			if e := child.NamedChild(j); e.Type() != "comment" {
				exprs = append(exprs, e)
				break
			}
		}
	}
	return exprs
}

// withGuards returns the guard expression of every item of a with statement.
func withGuards(n *sitter.Node) []*sitter.Node {
	var guards []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != "with_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			item := clause.NamedChild(j)
			if item.Type() != "with_item" {
				continue
			}
			if v := item.ChildByFieldName("value"); v != nil {
				guards = append(guards, v)
			} else if item.NamedChildCount() > 0 {
				guards = append(guards, item.NamedChild(0))
			}
		}
	}
	return guards
}

// locateError finds the first ERROR or MISSING node below n.
func locateError(n *sitter.Node) error {
	var found *sitter.Node
	var visit func(*sitter.Node)
	visit = func(c *sitter.Node) {
		if found != nil {
			return
		}
		if c.Type() == "ERROR" || c.IsMissing() {
			found = c
			return
		}
		for i := 0; i < int(c.ChildCount()); i++ {
			child := c.Child(i)
			if child.HasError() || child.IsMissing() {
				visit(child)
			}
		}
	}
	visit(n)

	if found == nil {
		found = n
	}
	p := found.StartPoint()
	return &SyntaxError{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// matcher holds the rendered identifiers the tree checks look for.
type matcher struct {
	namespace string
	stepID    string
	attachID  string
	policy    DecoratorPolicy
}

func newMatcher(opts Options) matcher {
	return matcher{
		namespace: opts.Namespace,
		stepID:    opts.Namespace + ".step",
		attachID:  opts.Namespace + ".attach",
		policy:    opts.DecoratorPolicy,
	}
}

// decorator accepts `@ns.name` (unless the policy is call-only) and
// `@ns.name(...)`. A bare name never counts.
func (m matcher) decorator(e Expr) bool {
	switch d := e.(type) {
	case Attribute:
		return m.policy != DecoratorCallOnly && m.attributeInNamespace(d)
	case Call:
		if attr, ok := d.Func.(Attribute); ok {
			return m.attributeInNamespace(attr)
		}
	}
	return false
}

func (m matcher) attributeInNamespace(a Attribute) bool {
	return strings.Contains(a.Object.Render(), m.namespace)
}

func (m matcher) step(guard Expr) bool {
	return strings.Contains(guard.Render(), m.stepID)
}

func (m matcher) attach(callee Expr) bool {
	return strings.Contains(callee.Render(), m.attachID)
}
