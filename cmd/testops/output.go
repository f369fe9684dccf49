package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"testops/internal/complexity"
	"testops/internal/pipeline"
	"testops/internal/validator"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Output formats for validate.
const (
	formatText     = "text"
	formatJSON     = "json"
	formatYAML     = "yaml"
	formatMarkdown = "markdown"
)

// Semantic colors
var (
	colorSuccess     = lipgloss.Color("#8BC34A") // Lime Green
	colorDestructive = lipgloss.Color("#e53935") // Red
	colorWarning     = lipgloss.Color("#FFC107") // Yellow
	colorMuted       = lipgloss.Color("#6b7280")

	titleStyle = lipgloss.NewStyle().Bold(true)
	passStyle  = lipgloss.NewStyle().Foreground(colorSuccess)
	failStyle  = lipgloss.NewStyle().Foreground(colorDestructive)
	warnStyle  = lipgloss.NewStyle().Foreground(colorWarning)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

// fileOutput is the serialized form of one validated input.
type fileOutput struct {
	Path       string             `json:"path" yaml:"path"`
	Validation *validator.Report  `json:"validation,omitempty" yaml:"validation,omitempty"`
	Complexity *complexity.Result `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	Error      string             `json:"error,omitempty" yaml:"error,omitempty"`
}

func toOutputs(results []pipeline.FileResult) []fileOutput {
	out := make([]fileOutput, 0, len(results))
	for i := range results {
		r := results[i]
		fo := fileOutput{Path: r.Path}
		if r.Err != nil {
			fo.Error = r.Err.Error()
		} else {
			fo.Validation = &r.Report
			fo.Complexity = &r.Complexity
		}
		out = append(out, fo)
	}
	return out
}

func validFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML, formatMarkdown:
		return nil
	}
	return fmt.Errorf("unknown format %q (valid: text, json, yaml, markdown)", format)
}

// writeResults renders results in format. A single stdin result is written
// as the bare report for the serialized formats.
func writeResults(w io.Writer, format string, results []pipeline.FileResult, bare bool) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if bare && len(results) == 1 {
			return enc.Encode(results[0].Report)
		}
		return enc.Encode(toOutputs(results))
	case formatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		if bare && len(results) == 1 {
			return enc.Encode(results[0].Report)
		}
		return enc.Encode(toOutputs(results))
	case formatMarkdown:
		rendered, err := renderMarkdown(markdownReport(results))
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, rendered)
		return err
	default:
		for _, r := range results {
			fmt.Fprint(w, textReport(r))
		}
		return nil
	}
}

func fileResult(path string, report validator.Report) pipeline.FileResult {
	return pipeline.FileResult{Path: path, Report: report}
}

// textReport renders one result as a styled checklist.
func textReport(r pipeline.FileResult) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(r.Path))
	sb.WriteString("\n")

	if r.Err != nil {
		sb.WriteString("  " + warnStyle.Render("! "+r.Err.Error()) + "\n")
		return sb.String()
	}
	if msg, ok := r.Report.Diagnostic(); ok {
		sb.WriteString("  " + failStyle.Render("✗ "+msg) + "\n")
		return sb.String()
	}

	checks, _ := r.Report.Checks()
	for _, name := range validator.CheckNames {
		ok, _ := checks.Get(name)
		if ok {
			sb.WriteString("  " + passStyle.Render("✓ "+name) + "\n")
		} else {
			sb.WriteString("  " + failStyle.Render("✗ "+name) + "\n")
		}
	}
	if r.Complexity.Level != "" {
		sb.WriteString("  " + mutedStyle.Render(fmt.Sprintf("complexity: %s (%d)", r.Complexity.Level, r.Complexity.Score)) + "\n")
	}
	return sb.String()
}

// markdownReport builds a markdown table of results.
func markdownReport(results []pipeline.FileResult) string {
	var sb strings.Builder
	sb.WriteString("# Validation report\n\n")
	sb.WriteString("| file | " + strings.Join(validator.CheckNames, " | ") + " | complexity |\n")
	sb.WriteString("|---|" + strings.Repeat("---|", len(validator.CheckNames)) + "---|\n")

	for _, r := range results {
		cells := []string{"`" + r.Path + "`"}
		switch {
		case r.Err != nil:
			cells = append(cells, "unreadable", "", "", "", "")
		case r.Report.IsParseError():
			msg, _ := r.Report.Diagnostic()
			cells = append(cells, msg, "", "", "", "")
		default:
			checks, _ := r.Report.Checks()
			for _, name := range validator.CheckNames {
				ok, _ := checks.Get(name)
				cells = append(cells, mark(ok))
			}
			cells = append(cells, string(r.Complexity.Level))
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return sb.String()
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

func renderMarkdown(md string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return renderer.Render(md)
}

// failures counts results that did not parse, were unreadable, or failed a check.
func failures(results []pipeline.FileResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil || !r.Report.Passed() {
			n++
		}
	}
	return n
}
