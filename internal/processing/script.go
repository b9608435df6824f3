package processing

import (
	"regexp"
	"strings"

	"github.com/andresvelez/shortreel-backend/pkg/db/models"
)

var (
	markupPattern     = regexp.MustCompile(`[*_~^>#\x60]+`)
	linkPattern       = regexp.MustCompile(`https?://\S+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	slugPattern       = regexp.MustCompile(`[^a-z0-9]+`)
)

// CleanText strips markup, links and noisy whitespace so the narrator reads
// plain prose.
func CleanText(body string) string {
	cleaned := linkPattern.ReplaceAllString(body, "")
	cleaned = markupPattern.ReplaceAllString(cleaned, "")
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// BuildScript assembles the narration script: title, attribution, then the
// cleaned body.
func BuildScript(story models.Story) string {
	parts := []string{strings.TrimSpace(story.Title)}
	if author := strings.TrimSpace(story.Author); author != "" && author != "[deleted]" {
		parts = append(parts, "Por "+author+".")
	}
	parts = append(parts, CleanText(story.Body))
	return strings.Join(parts, " ")
}

// Slug turns a story title into a filesystem-safe fragment for artifact names.
func Slug(title string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 40 {
		slug = strings.Trim(slug[:40], "-")
	}
	if slug == "" {
		slug = "story"
	}
	return slug
}
