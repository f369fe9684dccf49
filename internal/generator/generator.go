// Package generator drafts Allure test files with an LLM.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"testops/internal/logging"
)

// ErrNoRequirements is returned for an empty requirement.
var ErrNoRequirements = errors.New("no requirements")

// DefaultPromptTemplate is used when none is configured.
const DefaultPromptTemplate = "Generate Allure test for {req}"

// placeholder in a prompt template that receives the requirement text.
const placeholder = "{req}"

// Generator turns a requirement into draft test code.
type Generator struct {
	client   Client
	template string
	timeout  time.Duration
}

// New creates a Generator. An empty template means DefaultPromptTemplate;
// a zero timeout means none beyond the caller's context.
func New(client Client, template string, timeout time.Duration) *Generator {
	if template == "" {
		template = DefaultPromptTemplate
	}
	return &Generator{client: client, template: template, timeout: timeout}
}

// Prompt renders the prompt for req.
func (g *Generator) Prompt(req string) string {
	if !strings.Contains(g.template, placeholder) {
		return g.template + " " + req
	}
	return strings.ReplaceAll(g.template, placeholder, req)
}

// GenerateTest asks the model for a test covering req and returns the code,
// with any surrounding markdown fence removed.
func (g *Generator) GenerateTest(ctx context.Context, req string) (string, error) {
	if strings.TrimSpace(req) == "" {
		return "", ErrNoRequirements
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	timer := logging.StartTimer(logging.CategoryGenerator, "generate")
	text, err := g.client.Complete(ctx, g.Prompt(req))
	timer.Stop()
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	return ExtractCode(text), nil
}

// ExtractCode returns the code inside a ```python or ``` fence, or the
// trimmed text when there is no fence.
func ExtractCode(text string) string {
	patterns := []string{
		"```python\n",
		"```python\r\n",
		"```py\n",
		"```\n",
		"```\r\n",
	}

	for _, pattern := range patterns {
		if idx := strings.Index(text, pattern); idx != -1 {
			start := idx + len(pattern)
			end := strings.Index(text[start:], "```")
			if end != -1 {
				return strings.TrimSpace(text[start:start+end]) + "\n"
			}
		}
	}

	return strings.TrimSpace(text)
}
