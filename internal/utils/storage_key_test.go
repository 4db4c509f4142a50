package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"bulletin-mai.pdf", "bulletin-mai.pdf"},
		{"carte identité.png", "carte_identit_.png"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFileName(tt.input))
		})
	}
}

func TestSanitizeFileName_KeepsTail(t *testing.T) {
	long := strings.Repeat("a", 150) + ".pdf"
	safe := SanitizeFileName(long)

	assert.Len(t, safe, maxFileNameLen)
	assert.True(t, strings.HasSuffix(safe, ".pdf"))
}

func TestStorageKey(t *testing.T) {
	at := time.UnixMilli(1718445600000)

	assert.Equal(t, "prop-42/1718445600000_0_cni.png", StorageKey("prop-42", at, 0, "cni.png"))
	assert.Equal(t, "unassigned/1718445600000_2_fiche_de_paie.pdf", StorageKey("", at, 2, "fiche de paie.pdf"))
}
