// Package validator checks a drafted Python test file against the Allure
// structural conventions: an Arrange/Act/Assert narrative, a reporting
// decorator, step blocks and attachment calls.
//
// Validation is two independent passes merged into one Report:
//   - DetectAAA searches the raw text for the ordered AAA markers.
//   - InspectTree parses the source with the tree-sitter Python grammar and
//     looks for namespace-qualified decorators, `with <ns>.step(...)` blocks
//     and `<ns>.attach...(...)` calls.
//
// A candidate that does not parse produces a parse-error report and nothing
// else. Everything here is pure and safe for concurrent use.
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"testops/internal/logging"
)

// DefaultNamespace is the reporting framework identifier.
const DefaultNamespace = "allure"

// DecoratorPolicy selects which decorator shapes count as a reporting
// decorator.
type DecoratorPolicy string

const (
	// DecoratorAttributeOrCall accepts `@ns.title` and `@ns.title("x")`.
	DecoratorAttributeOrCall DecoratorPolicy = "attribute_or_call"
	// DecoratorCallOnly accepts only `@ns.title("x")`.
	DecoratorCallOnly DecoratorPolicy = "call_only"
)

// ParseDecoratorPolicy validates a policy name. Empty means the default.
func ParseDecoratorPolicy(s string) (DecoratorPolicy, error) {
	switch DecoratorPolicy(s) {
	case "":
		return DecoratorAttributeOrCall, nil
	case DecoratorAttributeOrCall, DecoratorCallOnly:
		return DecoratorPolicy(s), nil
	}
	return "", fmt.Errorf("unknown decorator policy %q (valid: %s, %s)", s, DecoratorAttributeOrCall, DecoratorCallOnly)
}

// Options tunes the tree pass.
type Options struct {
	// Namespace is the reporting framework identifier. Default "allure".
	Namespace string
	// DecoratorPolicy defaults to DecoratorAttributeOrCall.
	DecoratorPolicy DecoratorPolicy
}

// DefaultOptions returns the options used by the package-level Validate.
func DefaultOptions() Options {
	return Options{
		Namespace:       DefaultNamespace,
		DecoratorPolicy: DecoratorAttributeOrCall,
	}
}

func (o Options) withDefaults() Options {
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	if o.DecoratorPolicy == "" {
		o.DecoratorPolicy = DecoratorAttributeOrCall
	}
	return o
}

// Validator validates candidates with fixed options.
// It holds no mutable state; one value may serve any number of goroutines.
type Validator struct {
	opts Options
}

// New creates a Validator. Zero-valued option fields take their defaults.
func New(opts Options) *Validator {
	return &Validator{opts: opts.withDefaults()}
}

// Options returns the effective options.
func (v *Validator) Options() Options {
	return v.opts
}

// Validate validates source with the default options.
func Validate(source string) Report {
	return New(DefaultOptions()).Validate(source)
}

// Validate produces the report for source. Unparseable input yields a
// parse-error report.
func (v *Validator) Validate(source string) Report {
	return mustReport(v.ValidateContext(context.Background(), source))
}

// mustReport unwraps a report produced under a context that never ends.
// An error there is a bug, not a property of the candidate.
func mustReport(r Report, err error) Report {
	if err != nil {
		panic(fmt.Sprintf("validator: unbounded validation failed: %v", err))
	}
	return r
}

// ValidateContext is Validate with the parse bounded by ctx. The returned
// error is non-nil only when ctx ends before parsing finishes.
func (v *Validator) ValidateContext(ctx context.Context, source string) (Report, error) {
	timer := logging.StartTimer(logging.CategoryValidator, "validate")
	defer timer.Stop()

	aaa := DetectAAA(source)

	findings, err := InspectTree(ctx, source, v.opts)
	if err != nil {
		if errors.Is(err, ErrParseFailure) {
			logging.ValidatorDebug("candidate rejected (%d bytes): %v", len(source), err)
			return ParseErrorReport(InvalidSyntaxMessage), nil
		}
		return Report{}, fmt.Errorf("validation interrupted: %w", err)
	}

	return ChecksReport(merge(aaa, findings)), nil
}

// ValidateTimeout bounds the parse by d. A zero d means no bound.
func (v *Validator) ValidateTimeout(source string, d time.Duration) (Report, error) {
	if d <= 0 {
		return v.Validate(source), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return v.ValidateContext(ctx, source)
}

func merge(aaa bool, f TreeFindings) Checks {
	return Checks{
		AAA:               aaa,
		DecoratorPresent:  f.DecoratorPresent,
		StepPresent:       f.StepPresent,
		AttachmentPresent: f.AttachmentPresent,
	}
}
