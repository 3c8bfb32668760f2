package domain

import (
	"fmt"
	"regexp"
)

const maxFilenameLength = 100

var (
	unsafeChars   = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	separatorRuns = regexp.MustCompile(`[-\s]+`)
)

// SanitizeFilename reduces free-form text to a safe filename fragment.
// Characters outside letters, digits, underscore, space, and hyphen are
// stripped; runs of spaces and hyphens collapse to a single underscore;
// the result is capped at 100 runes. Empty input yields "video".
func SanitizeFilename(text string) string {
	if text == "" {
		return "video"
	}
	sanitized := unsafeChars.ReplaceAllString(text, "")
	sanitized = separatorRuns.ReplaceAllString(sanitized, "_")
	runes := []rune(sanitized)
	if len(runes) > maxFilenameLength {
		return string(runes[:maxFilenameLength])
	}
	return sanitized
}

// DownloadFilename builds the attachment filename for a downloaded video.
func DownloadFilename(profile string, index int) string {
	return fmt.Sprintf("%s_%d.mp4", SanitizeFilename(profile), index)
}
