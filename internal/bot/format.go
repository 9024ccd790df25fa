package bot

import (
	"fmt"
	"strings"
	"time"

	"prodmax/internal/domain"
)

// formatClock renders a duration as MM:SS, or H:MM:SS past an hour.
func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// plural picks the Russian noun form for n: one, few (2-4) or many.
func plural(n int, one, few, many string) string {
	n %= 100
	if n >= 11 && n <= 14 {
		return many
	}
	switch n % 10 {
	case 1:
		return one
	case 2, 3, 4:
		return few
	default:
		return many
	}
}

func formatMinutes(minutes int) string {
	if minutes <= 0 {
		return "0 минут"
	}
	h, m := minutes/60, minutes%60
	hours := fmt.Sprintf("%d %s", h, plural(h, "час", "часа", "часов"))
	mins := fmt.Sprintf("%d %s", m, plural(m, "минута", "минуты", "минут"))
	switch {
	case h == 0:
		return mins
	case m == 0:
		return hours
	default:
		return hours + " " + mins
	}
}

func progressBar(p int) string {
	filled := domain.ClampProgress(p) / 10
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

func xpLine(g *domain.XPGrant) string {
	if g == nil {
		return ""
	}
	line := fmt.Sprintf("+%d XP", g.Gained)
	if g.LeveledUp {
		line += fmt.Sprintf("\n🆙 Новый уровень: %d!", g.NewLevel)
	}
	return line
}
