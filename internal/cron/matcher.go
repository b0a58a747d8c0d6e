// Package cron evaluates the per-field schedules stored in the apps table.
//
// Unlike a full cron parser it never computes the next fire time: the
// scheduler asks, once per minute, whether the current minute matches.
// Malformed input never panics and never returns an error; a term that
// cannot be understood simply does not match, so a broken schedule fails
// closed.
package cron

import (
	"strconv"
	"strings"
	"time"

	"github.com/pepabo/dify-cron/internal/domain"
)

// Matches reports whether value satisfies the field expression.
//
// Supported terms, joined with commas: "*", "n", "a-b", "a-b/n" and "*/n".
// An empty expression matches everything.
func Matches(expression string, value int) bool {
	expression = strings.TrimSpace(expression)
	if expression == "" || expression == "*" {
		return true
	}

	for _, term := range strings.Split(expression, ",") {
		if matchTerm(strings.TrimSpace(term), value) {
			return true
		}
	}
	return false
}

func matchTerm(term string, value int) bool {
	if rangePart, stepText, ok := strings.Cut(term, "/"); ok {
		step, err := strconv.Atoi(stepText)
		if err != nil || step <= 0 {
			return false
		}
		if rangePart == "*" {
			return value%step == 0
		}
		if !strings.Contains(rangePart, "-") {
			// "5/10" is not a supported form.
			return false
		}
		start, end, ok := parseRange(rangePart)
		if !ok {
			return false
		}
		return start <= value && value <= end && (value-start)%step == 0
	}

	if strings.Contains(term, "-") {
		start, end, ok := parseRange(term)
		if !ok {
			return false
		}
		// Inverted ranges such as "5-1" are empty.
		return start <= value && value <= end
	}

	n, err := strconv.Atoi(term)
	if err != nil {
		return false
	}
	return n == value
}

func parseRange(s string) (start, end int, ok bool) {
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		return 0, 0, false
	}
	start, err := strconv.Atoi(lo)
	if err != nil {
		return 0, 0, false
	}
	end, err = strconv.Atoi(hi)
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// IsDue reports whether instant satisfies all five fields of s.
// Calendar components are taken in instant's own location.
func IsDue(instant time.Time, s domain.Schedule) bool {
	return Matches(s.Minute, instant.Minute()) &&
		Matches(s.Hour, instant.Hour()) &&
		Matches(s.DayOfMonth, instant.Day()) &&
		Matches(s.Month, int(instant.Month())) &&
		Matches(s.DayOfWeek, int(instant.Weekday()))
}
