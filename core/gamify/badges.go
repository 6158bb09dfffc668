package gamify

// BadgeDef defines a single badge.
type BadgeDef struct {
	Name        string
	Description string
	Icon        string
}

// Badges maps badge keys to their definitions.
var Badges = map[string]BadgeDef{
	"first_module":   {Name: "First Steps", Description: "Complete your first module", Icon: "🎬"},
	"first_course":   {Name: "Course Conqueror", Description: "Complete your first course", Icon: "🏆"},
	"courses_5":      {Name: "Curriculum Crusher", Description: "Complete 5 courses", Icon: "📚"},
	"streak_3":       {Name: "Getting Started", Description: "3-day learning streak", Icon: "✨"},
	"streak_7":       {Name: "Week Warrior", Description: "7-day learning streak", Icon: "🔥"},
	"streak_30":      {Name: "Monthly Master", Description: "30-day learning streak", Icon: "🌟"},
	"xp_1000":        {Name: "Rising Star", Description: "Earn 1,000 total XP", Icon: "⭐"},
	"xp_10000":       {Name: "Powerhouse", Description: "Earn 10,000 total XP", Icon: "💪"},
	"level_5":        {Name: "High Five", Description: "Reach level 5", Icon: "🖐"},
	"level_10":       {Name: "Double Digits", Description: "Reach level 10", Icon: "🔟"},
	"watch_10_hours": {Name: "Binge Learner", Description: "Watch 10 hours of lessons", Icon: "⏱"},
}

// AccountState is the slice of a learner account the badge rules look at.
type AccountState struct {
	ExperiencePoints int
	Level            int
	CurrentStreak    int
	CompletedModules int
	CompletedCourses int
	WatchTimeSeconds int
}

// CheckBadges returns the badge keys the account currently qualifies for.
// The caller is responsible for skipping badges already earned and only
// awarding new ones.
func CheckBadges(acct AccountState) []string {
	var earned []string

	if acct.CompletedModules >= 1 {
		earned = append(earned, "first_module")
	}
	if acct.CompletedCourses >= 1 {
		earned = append(earned, "first_course")
	}
	if acct.CompletedCourses >= 5 {
		earned = append(earned, "courses_5")
	}

	if acct.CurrentStreak >= 3 {
		earned = append(earned, "streak_3")
	}
	if acct.CurrentStreak >= 7 {
		earned = append(earned, "streak_7")
	}
	if acct.CurrentStreak >= 30 {
		earned = append(earned, "streak_30")
	}

	if acct.ExperiencePoints >= 1000 {
		earned = append(earned, "xp_1000")
	}
	if acct.ExperiencePoints >= 10000 {
		earned = append(earned, "xp_10000")
	}

	if acct.Level >= 5 {
		earned = append(earned, "level_5")
	}
	if acct.Level >= 10 {
		earned = append(earned, "level_10")
	}

	if acct.WatchTimeSeconds >= 10*60*60 {
		earned = append(earned, "watch_10_hours")
	}
	return earned
}
