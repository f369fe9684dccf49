package validator

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// The tree-sitter grammar accepts some source that Python rejects: Python 2
// statements, empty suites, misaligned dedents and misordered arguments or
// parameters. rejectInvalid walks an error-free tree and reports the first
// such construct as a SyntaxError.

const (
	reasonExpectedBlock    = "expected an indented block"
	reasonUnexpectedIndent = "unexpected indent"
	reasonUnindent         = "unindent does not match any outer indentation level"
	reasonPython2          = "Python 2 syntax"
	reasonArgOrder         = "positional argument follows keyword argument"
	reasonUnpackOrder      = "iterable argument unpacking follows keyword argument unpacking"
	reasonDefaultOrder     = "parameter without a default follows parameter with a default"
	reasonTupleParam       = "tuple parameter unpacking is not supported"
)

func rejectInvalid(root *sitter.Node) error {
	var found error
	var visit func(*sitter.Node)
	visit = func(n *sitter.Node) {
		if found != nil {
			return
		}
		if err := checkNode(n); err != nil {
			found = err
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(root)
	return found
}

func checkNode(n *sitter.Node) error {
	switch n.Type() {
	case "module", "block":
		return checkSuite(n)
	case "print_statement", "exec_statement":
		return syntaxErrorAt(n, reasonPython2)
	case "comparison_operator":
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); !c.IsNamed() && c.Type() == "<>" {
				return syntaxErrorAt(c, reasonPython2)
			}
		}
	case "elif_clause", "else_clause", "except_clause", "except_group_clause", "finally_clause":
		return checkClause(n)
	case "argument_list":
		return checkArguments(n)
	case "parameters", "lambda_parameters":
		return checkParameters(n)
	}
	return nil
}

// checkSuite requires a non-empty block and every statement that starts a
// new line to sit at the suite's indentation. Module statements sit at
// column 0.
func checkSuite(n *sitter.Node) error {
	var (
		prev   *sitter.Node
		column uint32
	)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		stmt := n.NamedChild(i)
		if stmt.IsExtra() {
			continue
		}
		start := stmt.StartPoint()

		if prev == nil {
			if n.Type() == "module" && start.Column != 0 {
				return syntaxErrorAt(stmt, reasonUnexpectedIndent)
			}
			column = start.Column
			prev = stmt
			continue
		}

		// Statements after a semicolon share the previous statement's line.
		end := prev.EndPoint()
		sameLine := start.Row == end.Row && start.Column > end.Column
		if !sameLine && start.Column != column {
			if start.Column > column {
				return syntaxErrorAt(stmt, reasonUnexpectedIndent)
			}
			return syntaxErrorAt(stmt, reasonUnindent)
		}
		prev = stmt
	}

	if prev == nil && n.Type() == "block" {
		return syntaxErrorAt(n, reasonExpectedBlock)
	}
	return nil
}

// checkClause aligns elif/else/except/finally with the statement they belong to.
func checkClause(n *sitter.Node) error {
	parent := n.Parent()
	if parent == nil {
		return nil
	}
	switch parent.Type() {
	case "if_statement", "for_statement", "while_statement", "try_statement":
	default:
		return nil
	}
	if n.StartPoint().Row > parent.StartPoint().Row && n.StartPoint().Column != parent.StartPoint().Column {
		return syntaxErrorAt(n, reasonUnindent)
	}
	return nil
}

// checkArguments enforces call argument order: no positional argument after
// a keyword or ** argument, and no * argument after a ** argument.
func checkArguments(n *sitter.Node) error {
	var keyword, doubleStar bool
	for i := 0; i < int(n.NamedChildCount()); i++ {
		arg := n.NamedChild(i)
		if arg.IsExtra() {
			continue
		}
		switch arg.Type() {
		case "keyword_argument":
			keyword = true
		case "dictionary_splat":
			doubleStar = true
		case "list_splat", "parenthesized_list_splat":
			if doubleStar {
				return syntaxErrorAt(arg, reasonUnpackOrder)
			}
		default:
			if keyword || doubleStar {
				return syntaxErrorAt(arg, reasonArgOrder)
			}
		}
	}
	return nil
}

// checkParameters rejects a positional parameter without a default after one
// with a default. Keyword-only parameters (after * or *args) are exempt.
func checkParameters(n *sitter.Node) error {
	var defaulted, keywordOnly bool
	for i := 0; i < int(n.NamedChildCount()); i++ {
		param := n.NamedChild(i)
		if param.IsExtra() {
			continue
		}
		kind := param.Type()
		if kind == "typed_parameter" && param.NamedChildCount() > 0 {
			switch param.NamedChild(0).Type() {
			case "list_splat_pattern":
				kind = "list_splat_pattern"
			case "dictionary_splat_pattern":
				kind = "dictionary_splat_pattern"
			}
		}

		switch kind {
		case "default_parameter", "typed_default_parameter":
			defaulted = true
		case "list_splat_pattern", "keyword_separator":
			keywordOnly = true
		case "tuple_pattern":
			return syntaxErrorAt(param, reasonTupleParam)
		case "identifier", "typed_parameter":
			if defaulted && !keywordOnly {
				return syntaxErrorAt(param, reasonDefaultOrder)
			}
		}
	}
	return nil
}

func syntaxErrorAt(n *sitter.Node, reason string) *SyntaxError {
	p := n.StartPoint()
	return &SyntaxError{Line: int(p.Row) + 1, Column: int(p.Column) + 1, Reason: reason}
}
