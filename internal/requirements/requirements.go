// Package requirements parses the short requirement strings fed to the
// generator and computes coverage percentages.
package requirements

import (
	"errors"
	"strings"
)

// ErrEmpty is returned for an empty requirement string.
var ErrEmpty = errors.New("empty requirements")

// Requirement is a parsed "type: description" string.
type Requirement struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"desc" yaml:"desc"`
}

// Parse splits text on ':' into a type and a description. Text without a
// colon becomes a type with an empty description; anything after a second
// colon is dropped.
func Parse(text string) (Requirement, error) {
	if text == "" {
		return Requirement{}, ErrEmpty
	}
	parts := strings.Split(text, ":")
	req := Requirement{Type: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		req.Description = strings.TrimSpace(parts[1])
	}
	return req, nil
}

// Coverage returns tested/total as a percentage, or 0 when total is 0.
func Coverage(tested, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(tested) / float64(total) * 100
}
