package intake

import (
	"regexp"
	"time"
)

// PeriodWindow is the number of months, current month included, a payslip may cover.
const PeriodWindow = 4

const periodLayout = "01/2006"

var periodPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{4}$`)

// ValidPayslipPeriods returns the accepted "MM/YYYY" periods relative to ref,
// most recent first: ref's month and the three before it.
func ValidPayslipPeriods(ref time.Time) []string {
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	periods := make([]string, 0, PeriodWindow)
	for i := 0; i < PeriodWindow; i++ {
		periods = append(periods, first.AddDate(0, -i, 0).Format(periodLayout))
	}
	return periods
}

// IsWellFormedPeriod reports whether period is a syntactically valid "MM/YYYY" string.
func IsWellFormedPeriod(period string) bool {
	return periodPattern.MatchString(period)
}

// IsValidPeriod reports whether period is well formed and inside the window for ref.
// Future months fall outside the window and are rejected the same way.
func IsValidPeriod(period string, ref time.Time) bool {
	if !IsWellFormedPeriod(period) {
		return false
	}
	for _, p := range ValidPayslipPeriods(ref) {
		if p == period {
			return true
		}
	}
	return false
}
