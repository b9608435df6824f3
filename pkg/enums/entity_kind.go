package enums

import "fmt"

// EntityKind enumerates the tables an audit log entry may point back to. The
// audit reference is a weak, lookup-only back-reference; the enum keeps it
// exhaustive when new entity kinds are added.
type EntityKind string

const (
	EntityKindStory       EntityKind = "stories"
	EntityKindContent     EntityKind = "processed_content"
	EntityKindPublication EntityKind = "platform_publications"
)

var validEntityKinds = []EntityKind{
	EntityKindStory,
	EntityKindContent,
	EntityKindPublication,
}

// IsValid reports whether the value matches a known entity kind.
func (e EntityKind) IsValid() bool {
	for _, candidate := range validEntityKinds {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEntityKind converts the raw string to EntityKind.
func ParseEntityKind(value string) (EntityKind, error) {
	for _, candidate := range validEntityKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entity kind %q", value)
}
