package validator

import "regexp"

// aaaPattern matches Arrange, Act and Assert in that order anywhere in the
// text, case-insensitively, with anything (newlines included) in between.
var aaaPattern = regexp.MustCompile(`(?is)arrange.*act.*assert`)

// DetectAAA runs the surface-text pass. It looks at raw text only and does
// not care whether the markers sit in comments, strings or code, nor whether
// the source parses.
func DetectAAA(source string) bool {
	return aaaPattern.MatchString(source)
}
