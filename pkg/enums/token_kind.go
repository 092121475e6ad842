package enums

import "fmt"

// TokenKind labels the self-contained bearer tokens the platform issues.
type TokenKind string

const (
	TokenKindAccess            TokenKind = "access"
	TokenKindRefresh           TokenKind = "refresh"
	TokenKindEmailVerification TokenKind = "email_verification"
	TokenKindPasswordReset     TokenKind = "password_reset"
)

var validTokenKinds = []TokenKind{
	TokenKindAccess,
	TokenKindRefresh,
	TokenKindEmailVerification,
	TokenKindPasswordReset,
}

// String implements fmt.Stringer.
func (t TokenKind) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TokenKind.
func (t TokenKind) IsValid() bool {
	for _, candidate := range validTokenKinds {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTokenKind converts raw input into a TokenKind.
func ParseTokenKind(value string) (TokenKind, error) {
	for _, candidate := range validTokenKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid token kind %q", value)
}
