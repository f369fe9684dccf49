package validator

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Check names, as they appear in serialized reports.
const (
	CheckAAA        = "aaa"
	CheckDecorator  = "decorator_present"
	CheckStep       = "step_present"
	CheckAttachment = "attachment_present"
)

// CheckNames lists the four checks in report order.
var CheckNames = []string{CheckAAA, CheckDecorator, CheckStep, CheckAttachment}

// InvalidSyntaxMessage is the diagnostic carried by a parse-error report.
const InvalidSyntaxMessage = "Invalid syntax"

// ErrParseFailure means the candidate does not conform to the Python grammar.
var ErrParseFailure = errors.New("parse failure")

// Shape discriminates the two mutually exclusive report forms.
type Shape int

const (
	ShapeChecks Shape = iota
	ShapeParseError
)

func (s Shape) String() string {
	switch s {
	case ShapeChecks:
		return "checks"
	case ShapeParseError:
		return "parse-error"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Checks holds the four independent structural outcomes.
type Checks struct {
	AAA               bool `json:"aaa" yaml:"aaa"`
	DecoratorPresent  bool `json:"decorator_present" yaml:"decorator_present"`
	StepPresent       bool `json:"step_present" yaml:"step_present"`
	AttachmentPresent bool `json:"attachment_present" yaml:"attachment_present"`
}

// Get returns the value of the named check.
func (c Checks) Get(name string) (bool, bool) {
	switch name {
	case CheckAAA:
		return c.AAA, true
	case CheckDecorator:
		return c.DecoratorPresent, true
	case CheckStep:
		return c.StepPresent, true
	case CheckAttachment:
		return c.AttachmentPresent, true
	}
	return false, false
}

// All reports whether every check passed.
func (c Checks) All() bool {
	return c.AAA && c.DecoratorPresent && c.StepPresent && c.AttachmentPresent
}

// Failed returns the names of the checks that did not pass, in report order.
func (c Checks) Failed() []string {
	var failed []string
	for _, name := range CheckNames {
		if ok, _ := c.Get(name); !ok {
			failed = append(failed, name)
		}
	}
	return failed
}

// Report is the result of validating one candidate. It is either a checks
// report or a parse-error report, never both; inspect Shape first.
type Report struct {
	shape   Shape
	checks  Checks
	message string
}

// ChecksReport builds a checks-shaped report.
func ChecksReport(c Checks) Report {
	return Report{shape: ShapeChecks, checks: c}
}

// ParseErrorReport builds a parse-error report with the given diagnostic.
func ParseErrorReport(message string) Report {
	return Report{shape: ShapeParseError, message: message}
}

// Shape returns which form the report has.
func (r Report) Shape() Shape { return r.shape }

// IsParseError reports whether the candidate failed to parse.
func (r Report) IsParseError() bool { return r.shape == ShapeParseError }

// Checks returns the check outcomes. ok is false for a parse-error report.
func (r Report) Checks() (c Checks, ok bool) {
	if r.shape != ShapeChecks {
		return Checks{}, false
	}
	return r.checks, true
}

// Diagnostic returns the parse-error message. ok is false for a checks report.
func (r Report) Diagnostic() (msg string, ok bool) {
	if r.shape != ShapeParseError {
		return "", false
	}
	return r.message, true
}

// Passed reports whether the candidate parsed and satisfies all four checks.
func (r Report) Passed() bool {
	return r.shape == ShapeChecks && r.checks.All()
}

func (r Report) String() string {
	if r.IsParseError() {
		return "error: " + r.message
	}
	c := r.checks
	return fmt.Sprintf("aaa=%t decorator_present=%t step_present=%t attachment_present=%t",
		c.AAA, c.DecoratorPresent, c.StepPresent, c.AttachmentPresent)
}

type parseErrorBody struct {
	Error string `json:"error" yaml:"error"`
}

// MarshalJSON emits either the four booleans or {"error": msg}.
func (r Report) MarshalJSON() ([]byte, error) {
	if r.IsParseError() {
		return json.Marshal(parseErrorBody{Error: r.message})
	}
	return json.Marshal(r.checks)
}

// UnmarshalJSON decides the shape by the presence of an "error" key.
func (r *Report) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields["error"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("report error field: %w", err)
		}
		*r = ParseErrorReport(msg)
		return nil
	}
	var c Checks
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	*r = ChecksReport(c)
	return nil
}

// MarshalYAML mirrors MarshalJSON for yaml.v3.
func (r Report) MarshalYAML() (interface{}, error) {
	if r.IsParseError() {
		return parseErrorBody{Error: r.message}, nil
	}
	return r.checks, nil
}
