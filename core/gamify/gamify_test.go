package gamify

import (
	"testing"
	"time"
)

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		xp   int
		want int
	}{
		{0, 1},
		{-5, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{899, 3},
		{900, 4},
		{10000, 11},
	}
	for _, tt := range tests {
		if got := LevelForXP(tt.xp); got != tt.want {
			t.Errorf("LevelForXP(%d) = %d; want %d", tt.xp, got, tt.want)
		}
	}
}

func TestXPForLevel(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{0, 0},
		{1, 0},
		{2, 100},
		{3, 400},
		{11, 10000},
	}
	for _, tt := range tests {
		if got := XPForLevel(tt.level); got != tt.want {
			t.Errorf("XPForLevel(%d) = %d; want %d", tt.level, got, tt.want)
		}
		if tt.level >= 1 {
			if got := LevelForXP(XPForLevel(tt.level)); got != tt.level && tt.level != 0 {
				t.Errorf("LevelForXP(XPForLevel(%d)) = %d", tt.level, got)
			}
		}
	}
}

func date(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestAdvance(t *testing.T) {
	day1 := date(2021, time.March, 1, 22)
	day2early := date(2021, time.March, 2, 1) // 3h later, next calendar day
	day2late := date(2021, time.March, 2, 23)
	day4 := date(2021, time.March, 4, 10)

	s := Advance(Streak{}, day1)
	if s.Current != 1 || s.Longest != 1 {
		t.Fatalf("first activity: got %+v", s)
	}
	if !s.LastActivity.Equal(day1) {
		t.Fatalf("LastActivity = %v; want %v", s.LastActivity, day1)
	}

	// next calendar day increments even if <24h elapsed
	s = Advance(s, day2early)
	if s.Current != 2 || s.Longest != 2 {
		t.Fatalf("next-day activity: got %+v", s)
	}

	// same day: count unchanged, anchor moved
	s = Advance(s, day2late)
	if s.Current != 2 {
		t.Fatalf("same-day activity: got %+v", s)
	}
	if !s.LastActivity.Equal(day2late) {
		t.Fatalf("same-day anchor not moved: %v", s.LastActivity)
	}

	// gap > 1 day resets current, longest stays
	s = Advance(s, day4)
	if s.Current != 1 {
		t.Fatalf("gap reset: got %+v", s)
	}
	if s.Longest != 2 {
		t.Fatalf("longest decreased: got %+v", s)
	}
}

// Two calls on the same calendar day followed by one the next day must see
// "1 day elapsed" from the most recent call, not from the day the streak
// last incremented.
func TestAdvance_multiCallPerDay(t *testing.T) {
	s := Advance(Streak{}, date(2021, time.March, 1, 9))
	s = Advance(s, date(2021, time.March, 1, 21))
	s = Advance(s, date(2021, time.March, 2, 8))
	if s.Current != 2 {
		t.Fatalf("Current = %d; want 2", s.Current)
	}
}

func TestCheckBadges(t *testing.T) {
	if got := CheckBadges(AccountState{}); got != nil {
		t.Fatalf("empty account earned %v", got)
	}

	keys := CheckBadges(AccountState{
		ExperiencePoints: 1200,
		Level:            5,
		CurrentStreak:    7,
		CompletedModules: 3,
		CompletedCourses: 1,
		WatchTimeSeconds: 3600,
	})
	want := map[string]bool{
		"first_module": true, "first_course": true,
		"streak_3": true, "streak_7": true,
		"xp_1000": true, "level_5": true,
	}
	if len(keys) != len(want) {
		t.Fatalf("CheckBadges() = %v; want keys %v", keys, want)
	}
	for _, k := range keys {
		if !want[k] {
			t.Errorf("unexpected badge %q", k)
		}
		if _, ok := Badges[k]; !ok {
			t.Errorf("badge %q has no definition", k)
		}
	}
}
