package enums

import "fmt"

// PublicationStatus describes the allowed values for the `status` column on
// platform_publications.
type PublicationStatus string

const (
	PublicationStatusScheduled PublicationStatus = "scheduled"
	PublicationStatusPublished PublicationStatus = "published"
	PublicationStatusFailed    PublicationStatus = "failed"
)

var validPublicationStatuses = []PublicationStatus{
	PublicationStatusScheduled,
	PublicationStatusPublished,
	PublicationStatusFailed,
}

// IsValid reports whether the value matches the canonical publication status enum.
func (p PublicationStatus) IsValid() bool {
	for _, candidate := range validPublicationStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePublicationStatus converts the raw string to PublicationStatus.
func ParsePublicationStatus(value string) (PublicationStatus, error) {
	for _, candidate := range validPublicationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid publication status %q", value)
}
