package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectAAA(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"comments in order", "# Arrange\nx = 1\n# Act\ny = f(x)\n# Assert\nassert y\n", true},
		{"mixed case", "ARRANGE then act then aSSert", true},
		{"inside strings", "s = 'arrange'; t = 'act'; u = 'assert'", true},
		{"markers split by newlines", "Arrange\n\n\nAct\n\n\nAssert", true},
		{"out of order", "Assert Act Arrange", false},
		{"missing act", "Arrange then Assert", false},
		{"repeated markers", "Assert Arrange Assert Act Arrange Assert", true},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectAAA(tt.text))
		})
	}
}
