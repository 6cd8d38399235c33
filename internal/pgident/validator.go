package pgident

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidIdentifier is the sentinel wrapped by every rejection from this
// package; callers can test with errors.Is regardless of the exact message.
var ErrInvalidIdentifier = errors.New("invalid postgresql identifier")

var tableOrColumnPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var (
	unqualifiedFunctionPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)
	qualifiedFunctionPattern   = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}\.[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)
)

// CheckIsValidTableOrColumnName rejects names that are empty/blank, upper
// to a reserved keyword, or fail the identifier pattern
// ^[A-Za-z_][A-Za-z0-9_]*$. context, if non-empty, is folded into the
// error message only; callers should not parse it back out.
//
// This is a first line of defense against SQL injection, not a complete
// one — it says nothing about anything spliced in besides the identifier
// itself.
func CheckIsValidTableOrColumnName(name, context string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: table or column name cannot be null or empty", ErrInvalidIdentifier)
	}

	upper := strings.ToUpper(trimmed)
	if IsReserved(upper) {
		return fmt.Errorf("%w: %q%s is a reserved keyword and cannot be used as a table or column name",
			ErrInvalidIdentifier, name, contextSuffix(context))
	}

	if !tableOrColumnPattern.MatchString(name) {
		return fmt.Errorf("%w: %q%s must start with a letter or underscore, followed by letters, digits, or underscores",
			ErrInvalidIdentifier, name, contextSuffix(context))
	}
	return nil
}

func contextSuffix(context string) string {
	if context == "" {
		return ""
	}
	return " in context: " + context
}

// IsValidFunctionName reports whether functionName is a valid unqualified
// SQL function name, or a qualified "schema.function" name where both
// halves individually satisfy the unqualified contract. Neither half may
// be a reserved keyword (case-insensitive).
func IsValidFunctionName(functionName string) bool {
	trimmed := strings.TrimSpace(functionName)
	if trimmed == "" {
		return false
	}

	if strings.Contains(functionName, ".") {
		if !qualifiedFunctionPattern.MatchString(functionName) {
			return false
		}
		for _, part := range strings.Split(functionName, ".") {
			if IsReserved(strings.ToUpper(strings.TrimSpace(part))) {
				return false
			}
		}
		return true
	}

	if !unqualifiedFunctionPattern.MatchString(functionName) {
		return false
	}
	return !IsReserved(strings.ToUpper(strings.TrimSpace(functionName)))
}
