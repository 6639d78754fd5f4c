package credentials

import (
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the minimum number of characters in a password.
const MinPasswordLength = 8

// ValidatePassword enforces the strength rules: at least MinPasswordLength
// characters, at least one letter and at least one digit.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &PolicyError{Reason: "password must be at least 8 characters"}
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return &PolicyError{Reason: "password must include letters and numbers"}
	}
	return nil
}
