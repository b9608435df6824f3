package enums

import "fmt"

// ContentStatus describes the allowed values for the `status` column on
// processed_content. It is a derived summary of the row's publications and is
// never written directly by the publication scheduler.
type ContentStatus string

const (
	ContentStatusPending    ContentStatus = "pending"
	ContentStatusProcessing ContentStatus = "processing"
	ContentStatusProcessed  ContentStatus = "processed"
	ContentStatusPublished  ContentStatus = "published"
	ContentStatusFailed     ContentStatus = "failed"
)

var validContentStatuses = []ContentStatus{
	ContentStatusPending,
	ContentStatusProcessing,
	ContentStatusProcessed,
	ContentStatusPublished,
	ContentStatusFailed,
}

// IsValid reports whether the value matches the canonical content status enum.
func (c ContentStatus) IsValid() bool {
	for _, candidate := range validContentStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseContentStatus converts the raw string to ContentStatus.
func ParseContentStatus(value string) (ContentStatus, error) {
	for _, candidate := range validContentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid content status %q", value)
}
