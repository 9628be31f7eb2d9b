package services

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// textPolicy strips every HTML element and escapes what remains, matching
// how the rest of the app treats user text as plain text.
var textPolicy = bluemonday.StrictPolicy()

// SanitizeText normalizes user-supplied text: trims surrounding whitespace
// and removes any HTML markup.
func SanitizeText(input string) string {
	return strings.TrimSpace(textPolicy.Sanitize(input))
}
