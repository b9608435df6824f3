package enums

import "fmt"

// ErrorCategory classifies audit log entries.
type ErrorCategory string

const (
	ErrorCategoryValidation   ErrorCategory = "validation"
	ErrorCategoryDependency   ErrorCategory = "dependency"
	ErrorCategoryLeaseExpired ErrorCategory = "lease_expired"
	ErrorCategoryStatusChange ErrorCategory = "status_change"
	ErrorCategoryRetention    ErrorCategory = "retention"
	ErrorCategoryOperator     ErrorCategory = "operator"
)

var validErrorCategories = []ErrorCategory{
	ErrorCategoryValidation,
	ErrorCategoryDependency,
	ErrorCategoryLeaseExpired,
	ErrorCategoryStatusChange,
	ErrorCategoryRetention,
	ErrorCategoryOperator,
}

// IsValid reports whether the value matches the canonical error category enum.
func (e ErrorCategory) IsValid() bool {
	for _, candidate := range validErrorCategories {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseErrorCategory converts the raw string to ErrorCategory.
func ParseErrorCategory(value string) (ErrorCategory, error) {
	for _, candidate := range validErrorCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid error category %q", value)
}
