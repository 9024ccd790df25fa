package domain

const xpPerLevel = 100

// XP awards per completed activity.
const (
	XPTaskCompleted     = 10
	XPPomodoroCompleted = 15
	XPHabitMarked       = 5
	XPGoalAchieved      = 50
)

// LevelForXP returns the level for a cumulative XP total: one level per
// hundred points, starting at level 1. Negative totals clamp to level 1.
func LevelForXP(xp int) int {
	if xp < 0 {
		return 1
	}
	return xp/xpPerLevel + 1
}

// XPGrant describes the outcome of awarding experience points.
type XPGrant struct {
	Gained    int
	NewTotal  int
	NewLevel  int
	LeveledUp bool
}

// GrantFromTotal derives a grant outcome from the post-update total.
func GrantFromTotal(gained, newTotal int) XPGrant {
	newLevel := LevelForXP(newTotal)
	return XPGrant{
		Gained:    gained,
		NewTotal:  newTotal,
		NewLevel:  newLevel,
		LeveledUp: newLevel > LevelForXP(newTotal-gained),
	}
}
