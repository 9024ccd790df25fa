package domain

import "time"

// StreakEntry is one day of a streak log. Day is a calendar day normalised to
// midnight UTC (see clock.Calendar).
type StreakEntry struct {
	Day       time.Time
	Completed bool
}

// ComputeStreak walks a newest-first log from today backwards. The entry at
// position i extends the streak only if it is completed and falls exactly i
// days before today; the first entry that breaks either rule ends the walk.
// A future-dated head entry therefore yields 0.
func ComputeStreak(today time.Time, log []StreakEntry) int {
	streak := 0
	for i, e := range log {
		if !e.Completed {
			break
		}
		if !sameDay(e.Day, today.AddDate(0, 0, -i)) {
			break
		}
		streak++
	}
	return streak
}

// NextBestStreak returns the best streak after observing current.
func NextBestStreak(best, current int) int {
	return max(best, current)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
