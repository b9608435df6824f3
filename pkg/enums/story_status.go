package enums

import "fmt"

// StoryStatus describes the allowed values for the `status` column on stories.
type StoryStatus string

const (
	StoryStatusPending    StoryStatus = "pending"
	StoryStatusProcessing StoryStatus = "processing"
	StoryStatusProcessed  StoryStatus = "processed"
	StoryStatusFailed     StoryStatus = "failed"
	StoryStatusPublished  StoryStatus = "published"
)

var validStoryStatuses = []StoryStatus{
	StoryStatusPending,
	StoryStatusProcessing,
	StoryStatusProcessed,
	StoryStatusFailed,
	StoryStatusPublished,
}

// IsValid reports whether the value matches the canonical story status enum.
func (s StoryStatus) IsValid() bool {
	for _, candidate := range validStoryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStoryStatus converts the raw string to StoryStatus.
func ParseStoryStatus(value string) (StoryStatus, error) {
	for _, candidate := range validStoryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid story status %q", value)
}
