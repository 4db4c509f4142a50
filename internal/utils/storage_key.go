package utils

import (
	"fmt"
	"strings"
	"time"
)

const maxFileNameLen = 100

// StorageKey builds the blob key of an uploaded applicant document:
// "<propertyID>/<unix millis>_<index>_<sanitized name>".
func StorageKey(propertyID string, at time.Time, index int, fileName string) string {
	prefix := SanitizeFileName(propertyID)
	if prefix == "" {
		prefix = "unassigned"
	}
	return fmt.Sprintf("%s/%d_%d_%s", prefix, at.UnixMilli(), index, SanitizeFileName(fileName))
}

// SanitizeFileName replaces every character outside [a-zA-Z0-9.-] with an underscore.
func SanitizeFileName(filename string) string {
	var b strings.Builder
	for _, r := range filename {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	safe := b.String()
	if len(safe) > maxFileNameLen {
		safe = safe[len(safe)-maxFileNameLen:]
	}
	return safe
}
