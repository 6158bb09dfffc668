// Package gamify holds the pure gamification rules: the XP level curve,
// the calendar-day streak rules and the badge thresholds. It performs no
// I/O; the user and progress services apply these rules to their aggregates.
package gamify

import "math"

// LevelForXP returns the level a learner with the given cumulative
// experience points sits at: floor(sqrt(xp/100)) + 1.
// 0..99 XP is level 1, 100 XP reaches level 2, 400 XP level 3, and so on.
func LevelForXP(xp int) int {
	if xp <= 0 {
		return 1
	}
	return int(math.Sqrt(float64(xp)/100)) + 1
}

// XPForLevel returns the minimum cumulative XP required for a level.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	n := level - 1
	return n * n * 100
}
