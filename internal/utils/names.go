package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var nameSeparators = regexp.MustCompile(`[\s-]+`)

// FormatName title-cases each space or hyphen separated part of a name.
// Parts are rejoined with single spaces: "JEAN-PIERRE" becomes "Jean Pierre".
func FormatName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	parts := nameSeparators.Split(strings.ToLower(name), -1)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(part)
		out = append(out, string(unicode.ToUpper(r))+part[size:])
	}
	return strings.Join(out, " ")
}
