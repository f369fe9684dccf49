// Package complexity gives a rough difficulty estimate for a drafted test.
package complexity

import "strings"

// Level buckets the score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Result is the outcome of Estimate.
type Result struct {
	Level   Level    `json:"complexity" yaml:"complexity"`
	Score   int      `json:"score" yaml:"score"`
	Factors []string `json:"factors" yaml:"factors"`
}

// Thresholds and weights.
const (
	manyLines   = 100
	manyAsserts = 10
	manySteps   = 5
	mediumAbove = 30
	highAbove   = 60

	weightLines   = 30
	weightAsserts = 25
	weightSteps   = 20
	weightTry     = 15
	weightLoops   = 10

	stepMarker   = "with allure.step"
	assertMarker = "assert"
	tryMarker    = "try:"
	exceptMarker = "except:"
)

// Estimate scores code by size, assertion count, step count, exception
// handling and loops. Factors lists what contributed, in scoring order.
func Estimate(code string) Result {
	var r Result

	if len(strings.Split(code, "\n")) > manyLines {
		r.add(weightLines, "many lines of code")
	}
	if strings.Count(code, assertMarker) > manyAsserts {
		r.add(weightAsserts, "many assertions")
	}
	if strings.Count(code, stepMarker) > manySteps {
		r.add(weightSteps, "deep step structure")
	}
	if strings.Contains(code, tryMarker) && strings.Contains(code, exceptMarker) {
		r.add(weightTry, "exception handling")
	}
	if strings.Contains(code, "for ") || strings.Contains(code, "while ") {
		r.add(weightLoops, "loops in test body")
	}

	switch {
	case r.Score > highAbove:
		r.Level = LevelHigh
	case r.Score > mediumAbove:
		r.Level = LevelMedium
	default:
		r.Level = LevelLow
	}
	if r.Factors == nil {
		r.Factors = []string{}
	}
	return r
}

func (r *Result) add(weight int, factor string) {
	r.Score += weight
	r.Factors = append(r.Factors, factor)
}
