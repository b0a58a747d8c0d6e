package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pepabo/dify-cron/internal/domain"
)

func TestMatches_Wildcard(t *testing.T) {
	for v := -1; v <= 60; v++ {
		assert.True(t, Matches("*", v), "* should match %d", v)
		assert.True(t, Matches("", v), "empty should match %d", v)
		assert.True(t, Matches("  ", v), "blank should match %d", v)
	}
}

func TestMatches_Properties(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want func(v int) bool
	}{
		{"single", "5", func(v int) bool { return v == 5 }},
		{"range", "1-5", func(v int) bool { return 1 <= v && v <= 5 }},
		{"stepped wildcard", "*/5", func(v int) bool { return v%5 == 0 }},
		{"stepped range", "0-59/5", func(v int) bool { return 0 <= v && v <= 59 && v%5 == 0 }},
		{"stepped range with offset", "10-30/7", func(v int) bool { return v == 10 || v == 17 || v == 24 }},
		{"list", "5,10,15", func(v int) bool { return v == 5 || v == 10 || v == 15 }},
		{"mixed list", "1-3,*/20,45", func(v int) bool { return (1 <= v && v <= 3) || v%20 == 0 || v == 45 }},
		{"spaces around terms", " 5 , 10 ", func(v int) bool { return v == 5 || v == 10 }},
		{"inverted range is empty", "5-1", func(v int) bool { return false }},
		{"inverted stepped range is empty", "30-10/5", func(v int) bool { return false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for v := 0; v <= 59; v++ {
				assert.Equal(t, tt.want(v), Matches(tt.expr, v), "Matches(%q, %d)", tt.expr, v)
			}
		})
	}
}

func TestMatches_Examples(t *testing.T) {
	assert.True(t, Matches("5", 5))
	assert.False(t, Matches("5", 6))
	assert.True(t, Matches("1-5", 1))
	assert.True(t, Matches("1-5", 5))
	assert.False(t, Matches("1-5", 6))
	assert.True(t, Matches("*/15", 45))
	assert.False(t, Matches("*/15", 50))
}

func TestMatches_MalformedNeverMatches(t *testing.T) {
	exprs := []string{
		"abc",
		"5/10",                    // bare value with step
		"*/0",                     // zero step
		"*/-2",                    // negative step
		"*/x",                     // non-numeric step
		"1-5/0",                   // zero step on range
		"a-b",                     // non-numeric range
		"1-",                      // open range
		"-5",                      // missing start
		"1-2-3",                   // too many bounds
		"0x10",                    // not base 10
		"5/",                      // empty step
		"/5",                      // empty range
		"**",                      // doubled wildcard
		"1.5",                     // not an integer
		",",                       // empty terms only
		"99999999999999999999999", // overflows int
	}

	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			for v := 0; v <= 59; v++ {
				assert.False(t, Matches(expr, v), "Matches(%q, %d)", expr, v)
			}
		})
	}
}

func TestMatches_MalformedTermDoesNotSpoilList(t *testing.T) {
	assert.True(t, Matches("abc,7", 7))
	assert.False(t, Matches("abc,7", 8))
}

func FuzzMatches(f *testing.F) {
	for _, seed := range []string{"*", "", "5", "1-5", "*/5", "0-59/5", "5,10,15", "5/10", "-", "/", "*/", "1-/2"} {
		f.Add(seed, 5)
	}
	f.Fuzz(func(t *testing.T, expr string, v int) {
		_ = Matches(expr, v)
	})
}

func everyField() domain.Schedule {
	return domain.Schedule{Minute: "*", Hour: "*", DayOfMonth: "*", Month: "*", DayOfWeek: "*"}
}

func TestIsDue_AllWildcards(t *testing.T) {
	start := time.Date(2024, 2, 28, 22, 0, 0, 0, time.UTC)
	for i := 0; i < 3*24*60; i += 7 {
		instant := start.Add(time.Duration(i) * time.Minute)
		assert.True(t, IsDue(instant, everyField()), "instant %s", instant)
		assert.True(t, IsDue(instant, domain.Schedule{}), "empty schedule at %s", instant)
	}
}

func TestIsDue_Scenario(t *testing.T) {
	// 2023-01-23 is a Monday.
	instant := time.Date(2023, 1, 23, 14, 35, 0, 0, time.UTC)

	s := domain.Schedule{Minute: "35", Hour: "*", DayOfMonth: "*", Month: "*", DayOfWeek: "1"}
	assert.True(t, IsDue(instant, s))

	s.DayOfWeek = "2"
	assert.False(t, IsDue(instant, s))
}

func TestIsDue_EachFieldGates(t *testing.T) {
	instant := time.Date(2023, 1, 23, 14, 35, 0, 0, time.UTC)

	tests := []struct {
		name  string
		apply func(s *domain.Schedule)
	}{
		{"minute", func(s *domain.Schedule) { s.Minute = "36" }},
		{"hour", func(s *domain.Schedule) { s.Hour = "15" }},
		{"day of month", func(s *domain.Schedule) { s.DayOfMonth = "24" }},
		{"month", func(s *domain.Schedule) { s.Month = "2" }},
		{"day of week", func(s *domain.Schedule) { s.DayOfWeek = "0" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := everyField()
			tt.apply(&s)
			assert.False(t, IsDue(instant, s))
		})
	}
}

func TestIsDue_SundayIsZero(t *testing.T) {
	sunday := time.Date(2023, 1, 22, 9, 0, 0, 0, time.UTC)
	s := everyField()
	s.DayOfWeek = "0"
	assert.True(t, IsDue(sunday, s))
	s.DayOfWeek = "7"
	assert.False(t, IsDue(sunday, s))
}

func TestIsDue_UsesInstantLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	instant := time.Date(2023, 1, 23, 0, 30, 0, 0, time.UTC).In(tokyo) // 09:30 JST

	s := everyField()
	s.Hour = "9"
	s.Minute = "30"
	assert.True(t, IsDue(instant, s))
	assert.False(t, IsDue(instant.UTC(), s))
}

func TestIsDue_Deterministic(t *testing.T) {
	instant := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	s := domain.Schedule{Minute: "0", Hour: "*/6", DayOfMonth: "1-7", Month: "*", DayOfWeek: "*"}
	first := IsDue(instant, s)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, IsDue(instant, s))
	}
	assert.True(t, first)
}
