package bot

import (
	"context"
	"fmt"

	"prodmax/internal/app"
)

// Notifier tells users about pomodoro sessions that finished on their own.
// Starts and stops are answered by the router directly.
type Notifier struct {
	users *app.UserService
	out   Messenger
}

var _ app.SessionNotifier = (*Notifier)(nil)

// NewNotifier creates a Notifier that sends through out.
func NewNotifier(users *app.UserService, out Messenger) *Notifier {
	return &Notifier{users: users, out: out}
}

// NotifySession implements app.SessionNotifier.
func (n *Notifier) NotifySession(ctx context.Context, ev app.SessionEvent) error {
	if ev.Kind != app.SessionExpired {
		return nil
	}
	user, err := n.users.Get(ctx, ev.Session.UserID)
	if err != nil {
		return fmt.Errorf("lookup session owner: %w", err)
	}

	text := "🍅 Pomodoro завершён! Отличная работа."
	if ev.Session.DurationMinutes > 0 {
		text = fmt.Sprintf("🍅 Pomodoro завершён! %s фокуса позади.", formatMinutes(ev.Session.DurationMinutes))
	}
	if line := xpLine(ev.XP); line != "" {
		text += "\n\n" + line
	}
	text += "\n\nСделай перерыв 5 минут и запускай следующий."

	reply := Reply{Text: text, Buttons: []Button{{Text: "🍅 Ещё один", Command: "/pomodoro start"}}}
	return n.out.Send(ctx, Recipient{UserID: user.MaxUserID}, reply)
}
