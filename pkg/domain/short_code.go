package domain

import (
	dErrors "courseflow/pkg/domain-errors"
)

// ShortCode is the three-letter uppercase code assigned to organizations and
// course types. Course numbers embed one of each, so validity here is what
// keeps course numbers parseable.
//
// Usage: construct via ParseShortCode at trust boundaries; direct casting
// bypasses validation.
type ShortCode string

// ParseShortCode constructs a ShortCode from external input.
//
// Errors: returns CodeInvalidInput when the value is not exactly three
// uppercase ASCII letters.
func ParseShortCode(s string) (ShortCode, error) {
	c := ShortCode(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "code must be three uppercase letters")
	}
	return c, nil
}

// IsValid reports whether the code is exactly three uppercase ASCII letters.
func (c ShortCode) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}

func (c ShortCode) String() string {
	return string(c)
}
