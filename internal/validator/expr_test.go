package validator

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseExpr parses a single expression statement and converts it.
func parseExpr(t *testing.T, code string) Expr {
	t.Helper()
	src := []byte(code)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	require.False(t, root.HasError(), "fixture %q must parse", code)
	stmt := root.NamedChild(0)
	require.Equal(t, "expression_statement", stmt.Type())
	return convertExpr(stmt.NamedChild(0), src)
}

func TestConvertExpr_Shapes(t *testing.T) {
	e := parseExpr(t, "allure")
	assert.Equal(t, Name{ID: "allure"}, e)

	e = parseExpr(t, "allure.title")
	assert.Equal(t, Attribute{Object: Name{ID: "allure"}, Attr: "title"}, e)

	e = parseExpr(t, "allure.title('x')")
	assert.Equal(t, Call{Func: Attribute{Object: Name{ID: "allure"}, Attr: "title"}, Args: "'x'"}, e)

	e = parseExpr(t, "allure.step()")
	assert.Equal(t, Call{Func: Attribute{Object: Name{ID: "allure"}, Attr: "step"}}, e)

	e = parseExpr(t, "items[0]")
	assert.IsType(t, Other{}, e)
}

func TestRender(t *testing.T) {
	tests := map[string]string{
		"allure.attach.file('a.png', name='x')": "allure.attach.file('a.png', name='x')",
		"(allure).step":                         "allure.step",
		"allure . step ( 'spaced' )":            "allure.step('spaced')",
		"get_allure().step('x')":                "get_allure().step('x')",
		"wrap(allure.step(\n  'x'\n))":          "wrap(allure.step('x'))",
		"sum(x for x in xs)":                    "sum(x for x in xs)",
		"steps[\n  0\n]":                        "steps[ 0 ]",
	}
	for code, want := range tests {
		assert.Equal(t, want, parseExpr(t, code).Render(), code)
	}
}
