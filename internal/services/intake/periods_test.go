package intake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidPayslipPeriods(t *testing.T) {
	tests := []struct {
		name     string
		ref      time.Time
		expected []string
	}{
		{"mid year", time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC), []string{"06/2024", "05/2024", "04/2024", "03/2024"}},
		{"year boundary", time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), []string{"02/2024", "01/2024", "12/2023", "11/2023"}},
		{"end of month", time.Date(2024, time.March, 31, 23, 59, 0, 0, time.UTC), []string{"03/2024", "02/2024", "01/2024", "12/2023"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			periods := ValidPayslipPeriods(tt.ref)
			assert.Equal(t, tt.expected, periods)
			assert.Len(t, periods, PeriodWindow)
		})
	}
}

func TestIsValidPeriod(t *testing.T) {
	ref := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		period   string
		expected bool
	}{
		{"06/2024", true},
		{"03/2024", true},
		{"02/2024", false},
		{"07/2024", false},
		{"13/2024", false},
		{"1/2024", false},
		{"02-2024", false},
		{"00/2024", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidPeriod(tt.period, ref))
		})
	}
}

func TestIsWellFormedPeriod(t *testing.T) {
	assert.True(t, IsWellFormedPeriod("12/1999"))
	assert.False(t, IsWellFormedPeriod("12/99"))
	assert.False(t, IsWellFormedPeriod(" 12/1999"))
}
