package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"testops/internal/config"
	"testops/internal/pipeline"
	"testops/internal/validator"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const passingDraft = `import allure

# Arrange Act Assert
@allure.title('t')
def test_a():
    with allure.step('s'):
        allure.attach('x')
`

func resetGlobals(t *testing.T) {
	t.Helper()
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	validateFormat = formatText
	validatePolicy = ""
	validateNamespace = ""
	validateJobs = 0
	validateStrict = false
	generateJSON = false
	complexityJSON = false
	historyLimit = 20
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, fn func(*cobra.Command, []string) error, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(stdin))
	err := fn(cmd, args)
	return out.String(), err
}

// runWithStderr is run that also returns what the command wrote to stderr.
func runWithStderr(t *testing.T, fn func(*cobra.Command, []string) error, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := &cobra.Command{}
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	err := fn(cmd, args)
	return out.String(), errOut.String(), err
}

func TestJoinArgs(t *testing.T) {
	got := joinArgs([]string{"one", "two", "three"})
	if got != "one two three" {
		t.Fatalf("expected 'one two three', got '%s'", got)
	}
}

func TestValidate_StdinJSONIsBareReport(t *testing.T) {
	resetGlobals(t)
	validateFormat = formatJSON

	out, err := run(t, runValidate, passingDraft)
	require.NoError(t, err)
	assert.JSONEq(t, `{"aaa":true,"decorator_present":true,"step_present":true,"attachment_present":true}`, out)
}

func TestValidate_StdinParseError(t *testing.T) {
	resetGlobals(t)
	validateFormat = formatJSON

	out, err := run(t, runValidate, "def (:\n")
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Invalid syntax"}`, out)
}

func TestValidate_FilesText(t *testing.T) {
	resetGlobals(t)
	dir := t.TempDir()
	good := writeFile(t, dir, "test_good.py", passingDraft)
	bad := writeFile(t, dir, "test_bad.py", "def (:\n")

	out, err := run(t, runValidate, "", good, bad)
	require.NoError(t, err)
	assert.Contains(t, out, "test_good.py")
	assert.Contains(t, out, "✓ attachment_present")
	assert.Contains(t, out, "✗ Invalid syntax")
	assert.Less(t, strings.Index(out, "test_good.py"), strings.Index(out, "test_bad.py"))
}

func TestValidate_FilesYAML(t *testing.T) {
	resetGlobals(t)
	validateFormat = formatYAML
	path := writeFile(t, t.TempDir(), "test_a.py", "x = 1\n")

	out, err := run(t, runValidate, "", path)
	require.NoError(t, err)
	assert.Contains(t, out, "path: "+path)
	assert.Contains(t, out, "aaa: false")
	assert.Contains(t, out, "complexity: low")
}

func TestValidate_Strict(t *testing.T) {
	resetGlobals(t)
	validateStrict = true
	path := writeFile(t, t.TempDir(), "test_a.py", "x = 1\n")

	_, stderr, err := runWithStderr(t, runValidate, "", path)
	assert.True(t, errors.Is(err, errChecksFailed))
	assert.Equal(t, "1 of 1 candidates failed\n", stderr)

	good := writeFile(t, t.TempDir(), "test_b.py", passingDraft)
	_, stderr, err = runWithStderr(t, runValidate, "", good)
	assert.NoError(t, err)
	assert.Empty(t, stderr)
}

func TestValidate_Flags(t *testing.T) {
	resetGlobals(t)
	validateFormat = formatJSON
	validatePolicy = "call_only"

	const bareDecorator = "@allure.feature\ndef test_a():\n    pass\n"
	out, err := run(t, runValidate, bareDecorator)
	require.NoError(t, err)
	var c validator.Checks
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.False(t, c.DecoratorPresent)

	// The default policy accepts the same decorator.
	resetGlobals(t)
	validateFormat = formatJSON
	out, err = run(t, runValidate, bareDecorator)
	require.NoError(t, err)
	c = validator.Checks{}
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.True(t, c.DecoratorPresent)

	const qaAttach = "qa.attach('x')\n"
	resetGlobals(t)
	validateFormat = formatJSON
	validateNamespace = "qa"
	out, err = run(t, runValidate, qaAttach)
	require.NoError(t, err)
	c = validator.Checks{}
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.True(t, c.AttachmentPresent)

	// Without the flag the qa namespace is not recognised.
	resetGlobals(t)
	validateFormat = formatJSON
	out, err = run(t, runValidate, qaAttach)
	require.NoError(t, err)
	c = validator.Checks{}
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.False(t, c.AttachmentPresent)
}

func TestValidate_BadFormat(t *testing.T) {
	resetGlobals(t)
	validateFormat = "xml"
	_, err := run(t, runValidate, "")
	assert.Error(t, err)
}

func TestMarkdownReport(t *testing.T) {
	results := []pipeline.FileResult{
		{Path: "a.py", Report: validator.ChecksReport(validator.Checks{AAA: true})},
		{Path: "b.py", Report: validator.ParseErrorReport(validator.InvalidSyntaxMessage)},
	}
	md := markdownReport(results)
	assert.Contains(t, md, "| file | aaa | decorator_present | step_present | attachment_present | complexity |")
	assert.Contains(t, md, "| `a.py` | yes | no | no | no |")
	assert.Contains(t, md, "| `b.py` | Invalid syntax |")

	rendered, err := renderMarkdown(md)
	require.NoError(t, err)
	assert.Contains(t, rendered, "a.py")
}

func TestGenerate_StubProvider(t *testing.T) {
	resetGlobals(t)
	cfg.Generator.StubResponse = "```python\n" + passingDraft + "```"
	generateJSON = true

	out, err := run(t, runGenerate, "", "login:", "user", "signs", "in")
	require.NoError(t, err)

	var res struct {
		Code       string           `json:"code"`
		Validation validator.Report `json:"validation"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, passingDraft, res.Code)
	assert.True(t, res.Validation.Passed())
}

func TestGenerate_Text(t *testing.T) {
	resetGlobals(t)
	out, err := run(t, runGenerate, "", "cart")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated code here")
	assert.Contains(t, out, "Invalid syntax")
}

func TestComplexity(t *testing.T) {
	resetGlobals(t)
	code := "for x in y:\n    pass\ntry:\n    pass\nexcept:\n    pass\n"

	out, err := run(t, runComplexity, code)
	require.NoError(t, err)
	assert.Contains(t, out, "low (score 25)")
	assert.Contains(t, out, "exception handling")

	complexityJSON = true
	path := writeFile(t, t.TempDir(), "t.py", code)
	out, err = run(t, runComplexity, "", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"complexity":"low"`)
}

func TestCoverage(t *testing.T) {
	resetGlobals(t)
	out, err := run(t, runCoverage, "", "5", "10")
	require.NoError(t, err)
	assert.Equal(t, "50.0%\n", out)

	out, err = run(t, runCoverage, "", "3", "0")
	require.NoError(t, err)
	assert.Equal(t, "0.0%\n", out)

	_, err = run(t, runCoverage, "", "x", "3")
	assert.Error(t, err)
}

func TestHistory(t *testing.T) {
	resetGlobals(t)
	cfg.Store.Enabled = true
	cfg.Store.Path = filepath.Join(t.TempDir(), "runs.db")

	out, err := run(t, runHistory, "")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")

	validateFormat = formatJSON
	_, err = run(t, runValidate, passingDraft)
	require.NoError(t, err)
	_, err = run(t, runValidate, "def (:\n")
	require.NoError(t, err)

	out, err = run(t, runHistory, "")
	require.NoError(t, err)
	assert.Contains(t, out, "<stdin>")
	assert.Contains(t, out, "2 runs, 1 passed, 1 parse errors")
}

func TestRootCommand_LoadsConfig(t *testing.T) {
	resetGlobals(t)
	path := filepath.Join(t.TempDir(), "testops.yaml")
	c := config.DefaultConfig()
	c.Validator.Namespace = "qa"
	require.NoError(t, c.Save(path))

	configPath = path
	t.Cleanup(func() { configPath = "testops.yaml" })
	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	assert.Equal(t, "qa", cfg.Validator.Namespace)
	assert.NotNil(t, logger)
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	fn()

	_ = w.Close()
	os.Stdout = origOut
	return <-done
}

func TestCoverage_DefaultsToStdout(t *testing.T) {
	resetGlobals(t)
	out := captureOutput(t, func() {
		require.NoError(t, runCoverage(&cobra.Command{}, []string{"1", "4"}))
	})
	assert.Equal(t, "25.0%\n", out)
}
