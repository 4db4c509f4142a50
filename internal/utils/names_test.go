package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"DUPONT", "Dupont"},
		{"jean-pierre", "Jean Pierre"},
		{"  MARIE  CLAIRE ", "Marie Claire"},
		{"ÉLODIE", "Élodie"},
		{"dupont - martin", "Dupont Martin"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatName(tt.input))
		})
	}
}
