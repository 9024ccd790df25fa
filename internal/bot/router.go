package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"prodmax/internal/app"
	"prodmax/internal/domain"
)

// Keyboard button texts. Message buttons echo their text, so the router
// accepts them as commands.
const (
	ButtonTasks    = "📝 Задачи"
	ButtonPomodoro = "🍅 Pomodoro"
	ButtonHabits   = "✅ Привычки"
	ButtonStats    = "📊 Статистика"
)

const (
	apologyText = "😅 Произошла ошибка. Попробуй ещё раз или напиши /help для помощи."
	unknownText = "🤔 Не понял команду. Используй /help для списка команд или /start для начала работы."
)

var mainKeyboard = []Button{{Text: ButtonTasks}, {Text: ButtonPomodoro}, {Text: ButtonHabits}, {Text: ButtonStats}}

// Services groups the application services the router drives.
type Services struct {
	Users    *app.UserService
	Tasks    *app.TaskService
	Pomodoro *app.PomodoroService
	Habits   *app.HabitService
	Goals    *app.GoalService
}

// Router parses command text, calls the services and sends the reply.
type Router struct {
	svc    Services
	out    Messenger
	logger *slog.Logger
}

// NewRouter creates a Router that replies through out.
func NewRouter(svc Services, out Messenger, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{svc: svc, out: out, logger: logger.With("component", "bot")}
}

// Handle answers one incoming message. Only delivery failures are returned;
// service failures become an apology reply.
func (r *Router) Handle(ctx context.Context, in Incoming) error {
	reply, ok := r.Respond(ctx, in)
	if !ok {
		return nil
	}
	to := in.Recipient
	if to == (Recipient{}) {
		to.UserID = in.MaxUserID
	}
	if err := r.out.Send(ctx, to, reply); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// Respond computes the reply to in without sending it. It reports false for
// messages that must be ignored.
func (r *Router) Respond(ctx context.Context, in Incoming) (Reply, bool) {
	if in.MaxUserID == 0 {
		r.logger.Warn("message without sender", "text_len", len(in.Text))
		return Reply{}, false
	}

	user, err := r.svc.Users.GetOrCreate(ctx, in.MaxUserID, in.Name)
	if err != nil {
		r.logger.Error("get or create user", "max_user_id", in.MaxUserID, "error", err)
		return Reply{Text: apologyText}, true
	}

	reply, err := r.dispatch(ctx, user, strings.TrimSpace(in.Text))
	if err != nil {
		r.logger.Error("handle command", "user_id", user.ID, "error", err)
		return Reply{Text: apologyText}, true
	}
	return reply, true
}

func (r *Router) dispatch(ctx context.Context, user *domain.User, text string) (Reply, error) {
	switch text {
	case ButtonTasks:
		return r.listTasks(ctx, user)
	case ButtonPomodoro:
		return r.pomodoro(ctx, user, "help")
	case ButtonHabits:
		return r.listHabits(ctx, user)
	case ButtonStats:
		return r.stats(ctx, user)
	}

	cmd, args := splitCommand(text)
	switch cmd {
	case "/start", "/help", "начать", "помощь":
		return r.help(user), nil
	case "/tasks", "задачи":
		return r.listTasks(ctx, user)
	case "/task":
		return r.createTask(ctx, user, args)
	case "/complete":
		return r.completeTask(ctx, user, args)
	case "/deltask":
		return r.deleteTask(ctx, user, args)
	case "/pomodoro", "помидор":
		return r.pomodoro(ctx, user, args)
	case "/habits", "привычки":
		return r.listHabits(ctx, user)
	case "/habit":
		return r.createHabit(ctx, user, args)
	case "/mark":
		return r.markHabit(ctx, user, args)
	case "/delhabit":
		return r.deleteHabit(ctx, user, args)
	case "/career", "карьера":
		return r.listGoals(ctx, user)
	case "/goal":
		return r.createGoal(ctx, user, args)
	case "/progress", "прогресс":
		return r.progress(ctx, user, args)
	case "/done":
		return r.completeGoal(ctx, user, args)
	case "/stats", "статистика":
		return r.stats(ctx, user)
	}
	return Reply{Text: unknownText}, nil
}

// splitCommand lower-cases the first word and strips a "@botname" suffix.
// The arguments keep their original case.
func splitCommand(text string) (string, string) {
	head, rest, _ := strings.Cut(text, " ")
	cmd := strings.ToLower(head)
	if strings.HasPrefix(cmd, "/") {
		if i := strings.IndexByte(cmd, '@'); i > 0 {
			cmd = cmd[:i]
		}
	}
	return cmd, strings.TrimSpace(rest)
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	return id, err == nil && id > 0
}

// failure turns known service errors into a user-facing reply and passes
// anything else through.
func failure(err error) (Reply, error) {
	var (
		running *app.AlreadyRunningError
		verr    *app.ValidationError
	)
	switch {
	case errors.As(err, &running):
		return Reply{Text: fmt.Sprintf("⏱️ У тебя уже есть активная Pomodoro сессия!\n\nОсталось: %s\n\nИспользуй /pomodoro stop чтобы остановить", formatClock(running.Remaining))}, nil
	case errors.Is(err, app.ErrSessionNotRunning):
		return Reply{Text: "❌ Нет активной Pomodoro сессии"}, nil
	case errors.Is(err, app.ErrInvalidDuration):
		return Reply{Text: "❌ Длительность должна быть от 1 до 240 минут"}, nil
	case errors.Is(err, app.ErrTaskNotFound):
		return Reply{Text: "❌ Задача не найдена"}, nil
	case errors.Is(err, app.ErrHabitNotFound):
		return Reply{Text: "❌ Привычка не найдена"}, nil
	case errors.Is(err, app.ErrGoalNotFound):
		return Reply{Text: "❌ Цель не найдена"}, nil
	case errors.As(err, &verr):
		switch verr.Field {
		case "title":
			return Reply{Text: "❌ Название должно быть непустым и не длиннее 500 символов"}, nil
		case "name":
			return Reply{Text: "❌ Укажи название привычки: /habit [название]"}, nil
		}
		return Reply{Text: "❌ Некорректные данные"}, nil
	}
	return Reply{}, err
}

func (r *Router) help(user *domain.User) Reply {
	text := fmt.Sprintf(`🎯 Привет! Я ProdMax, твой помощник по продуктивности!

✨ Что я умею:
• 📝 Управление задачами
• 🍅 Pomodoro таймер
• ✅ Трекер привычек
• 🚀 Карьерные цели
• 📊 Статистика и прогресс

💡 Команды:
/start или /help - это меню
/tasks - список задач
/task [название] - создать задачу (! в конце - срочная)
/complete [id] - выполнить задачу
/pomodoro - таймер Pomodoro
/habits - мои привычки
/habit [название] - добавить привычку
/mark [id или название] - отметить привычку
/career - карьерные цели
/goal [название] - создать цель
/progress [id] [%%] - обновить прогресс цели
/stats - статистика

🔥 Твой уровень: %d | XP: %d

Начни с создания первой задачи: /task Изучить MAX API`, user.Level, user.XP)
	return Reply{Text: text, Buttons: mainKeyboard}
}

// --- tasks ---

func (r *Router) listTasks(ctx context.Context, user *domain.User) (Reply, error) {
	tasks, err := r.svc.Tasks.List(ctx, user.ID, "")
	if err != nil {
		return failure(err)
	}
	if len(tasks) == 0 {
		return Reply{Text: "📝 У тебя пока нет задач. Создай первую: /task [название]"}, nil
	}

	var (
		b         strings.Builder
		pending   []domain.Task
		completed int
	)
	for _, t := range tasks {
		if t.Status == domain.TaskCompleted {
			completed++
			continue
		}
		pending = append(pending, t)
	}

	b.WriteString("📝 Твои задачи:\n\n")
	if len(pending) > 0 {
		b.WriteString("⏳ В работе:\n")
		for i, t := range pending[:min(len(pending), 10)] {
			fmt.Fprintf(&b, "%d. %s", i+1, t.Title)
			if t.Priority == domain.PriorityHigh {
				b.WriteString(" 🔥")
			}
			if t.DueDate != nil {
				fmt.Fprintf(&b, " (до %s)", t.DueDate.Format("02.01.2006"))
			}
			fmt.Fprintf(&b, "\n   /complete %d\n", t.ID)
		}
	}
	if completed > 0 {
		fmt.Fprintf(&b, "\n✅ Выполнено: %d %s", completed, plural(completed, "задача", "задачи", "задач"))
	}
	b.WriteString("\n\n💡 Создать задачу: /task [название]")
	return Reply{Text: b.String()}, nil
}

func (r *Router) createTask(ctx context.Context, user *domain.User, args string) (Reply, error) {
	if args == "" {
		return Reply{Text: "❌ Укажи название задачи: /task [название]"}, nil
	}
	nt := domain.NewTask{Title: args}
	if rest, ok := strings.CutSuffix(args, " !"); ok {
		nt = domain.NewTask{Title: rest, Priority: domain.PriorityHigh}
	}
	task, err := r.svc.Tasks.Create(ctx, user.ID, nt)
	if err != nil {
		return failure(err)
	}
	return Reply{Text: fmt.Sprintf("✅ Задача создана!\n\n\"%s\"\n\nИспользуй /complete %d чтобы завершить её", task.Title, task.ID)}, nil
}

func (r *Router) completeTask(ctx context.Context, user *domain.User, args string) (Reply, error) {
	id, ok := parseID(args)
	if !ok {
		return Reply{Text: "❌ Укажи ID задачи: /complete [id]"}, nil
	}
	res, err := r.svc.Tasks.Complete(ctx, user.ID, id)
	if err != nil {
		return failure(err)
	}
	if res.AlreadyCompleted {
		return Reply{Text: fmt.Sprintf("👌 Задача \"%s\" уже выполнена", res.Task.Title)}, nil
	}
	return Reply{Text: fmt.Sprintf("🎉 Задача \"%s\" выполнена!\n\n%s", res.Task.Title, xpLine(res.XP))}, nil
}

func (r *Router) deleteTask(ctx context.Context, user *domain.User, args string) (Reply, error) {
	id, ok := parseID(args)
	if !ok {
		return Reply{Text: "❌ Укажи ID задачи: /deltask [id]"}, nil
	}
	if err := r.svc.Tasks.Delete(ctx, user.ID, id); err != nil {
		return failure(err)
	}
	return Reply{Text: "🗑️ Задача удалена"}, nil
}

// --- pomodoro ---

const pomodoroHelp = `🍅 Pomodoro команды:
/pomodoro start [минуты] - запустить таймер
/pomodoro task [id] - таймер для задачи
/pomodoro stop - остановить
/pomodoro status - проверить время
/pomodoro stats - статистика`

func (r *Router) pomodoro(ctx context.Context, user *domain.User, args string) (Reply, error) {
	sub, rest := splitCommand(args)
	switch sub {
	case "", "start", "старт":
		minutes := 0
		if rest != "" {
			n, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil || n <= 0 {
				return Reply{Text: "❌ Укажи длительность в минутах: /pomodoro start 25"}, nil
			}
			minutes = n
		}
		return r.startPomodoro(ctx, user, nil, minutes)
	case "task", "задача":
		id, ok := parseID(rest)
		if !ok {
			return Reply{Text: "❌ Укажи ID задачи: /pomodoro task [id]"}, nil
		}
		return r.startPomodoro(ctx, user, &id, 0)
	case "stop", "стоп":
		stopped, err := r.svc.Pomodoro.Stop(ctx, user.ID)
		if err != nil {
			return failure(err)
		}
		return Reply{Text: fmt.Sprintf("⏹️ Pomodoro остановлен через %s.\nXP за прерванную сессию не начисляется.", formatClock(stopped.Elapsed))}, nil
	case "status", "статус":
		status, err := r.svc.Pomodoro.Status(user.ID)
		if err != nil {
			return failure(err)
		}
		return Reply{Text: "⏱️ Осталось: " + formatClock(status.Remaining)}, nil
	case "stats", "статистика":
		st, err := r.svc.Pomodoro.Stats(ctx, user.ID)
		if err != nil {
			return failure(err)
		}
		return Reply{Text: fmt.Sprintf("📊 Статистика Pomodoro:\n\nВсего сессий: %d\nЗавершено: %d\nВремя фокуса: %s",
			st.TotalSessions, st.CompletedSessions, formatMinutes(st.TotalMinutes))}, nil
	}
	return Reply{Text: pomodoroHelp}, nil
}

func (r *Router) startPomodoro(ctx context.Context, user *domain.User, taskID *int64, minutes int) (Reply, error) {
	started, err := r.svc.Pomodoro.Start(ctx, user.ID, taskID, minutes)
	if err != nil {
		return failure(err)
	}
	text := fmt.Sprintf("🍅 Pomodoro запущен! %s фокуса.", formatMinutes(started.Session.DurationMinutes))
	if taskID != nil {
		text += fmt.Sprintf("\nЗадача: #%d", *taskID)
	}
	text += "\n\nИспользуй /pomodoro status чтобы проверить время\n/pomodoro stop чтобы остановить"
	return Reply{Text: text}, nil
}

// --- habits ---

func (r *Router) listHabits(ctx context.Context, user *domain.User) (Reply, error) {
	habits, err := r.svc.Habits.List(ctx, user.ID, true)
	if err != nil {
		return failure(err)
	}
	if len(habits) == 0 {
		return Reply{Text: "✅ У тебя пока нет привычек. Создай первую: /habit [название]"}, nil
	}
	var b strings.Builder
	b.WriteString("✅ Твои привычки:\n\n")
	for i, h := range habits {
		fmt.Fprintf(&b, "%d. %s (ID: %d) 🔥%d (лучший: %d)\n", i+1, h.Name, h.ID, h.CurrentStreak, h.BestStreak)
		fmt.Fprintf(&b, "   /mark %d или /mark %s\n\n", h.ID, h.Name)
	}
	b.WriteString("💡 Добавить привычку: /habit [название]")
	return Reply{Text: b.String()}, nil
}

func (r *Router) createHabit(ctx context.Context, user *domain.User, args string) (Reply, error) {
	if args == "" {
		return Reply{Text: "❌ Укажи название привычки: /habit [название]"}, nil
	}
	h, err := r.svc.Habits.Create(ctx, user.ID, domain.NewHabit{Name: args})
	if err != nil {
		return failure(err)
	}
	return Reply{Text: fmt.Sprintf("✅ Привычка \"%s\" добавлена!\n\nИспользуй /mark %d чтобы отметить выполнение", h.Name, h.ID)}, nil
}

func (r *Router) markHabit(ctx context.Context, user *domain.User, args string) (Reply, error) {
	if args == "" {
		return Reply{Text: "❌ Укажи ID или название привычки: /mark [id или название]"}, nil
	}
	res, err := r.svc.Habits.MarkToday(ctx, user.ID, args)
	if err != nil {
		return failure(err)
	}
	if res.AlreadyRecorded {
		return Reply{Text: fmt.Sprintf("👌 Привычка \"%s\" уже отмечена сегодня.\n\n🔥 Streak: %d", res.Habit.Name, res.Streak)}, nil
	}
	return Reply{Text: fmt.Sprintf("🎉 Привычка \"%s\" отмечена!\n\n🔥 Streak: %d (лучший: %d)\n%s",
		res.Habit.Name, res.Streak, res.BestStreak, xpLine(res.XP))}, nil
}

func (r *Router) deleteHabit(ctx context.Context, user *domain.User, args string) (Reply, error) {
	id, ok := parseID(args)
	if !ok {
		return Reply{Text: "❌ Укажи ID привычки: /delhabit [id]"}, nil
	}
	h, err := r.svc.Habits.Delete(ctx, user.ID, id)
	if err != nil {
		return failure(err)
	}
	return Reply{Text: fmt.Sprintf("🗑️ Привычка \"%s\" удалена", h.Name)}, nil
}

// --- career goals ---

func (r *Router) listGoals(ctx context.Context, user *domain.User) (Reply, error) {
	goals, err := r.svc.Goals.List(ctx, user.ID, domain.GoalActive)
	if err != nil {
		return failure(err)
	}
	if len(goals) == 0 {
		return Reply{Text: "🚀 У тебя пока нет карьерных целей. Создай первую: /goal [название]"}, nil
	}
	var b strings.Builder
	b.WriteString("🚀 Твои карьерные цели:\n\n")
	for i, g := range goals {
		fmt.Fprintf(&b, "%d. %s (ID: %d)\n   %s %d%%\n\n", i+1, g.Title, g.ID, progressBar(g.Progress), g.Progress)
	}
	b.WriteString("💡 Создать цель: /goal [название]\n📈 Обновить прогресс: /progress [id] [%]")
	return Reply{Text: b.String()}, nil
}

func (r *Router) createGoal(ctx context.Context, user *domain.User, args string) (Reply, error) {
	if args == "" {
		return Reply{Text: "❌ Укажи название цели: /goal [название]"}, nil
	}
	g, err := r.svc.Goals.Create(ctx, user.ID, domain.NewGoal{Title: args})
	if err != nil {
		return failure(err)
	}
	return Reply{Text: fmt.Sprintf("🚀 Цель \"%s\" создана!\n\nИспользуй /career чтобы посмотреть все цели", g.Title)}, nil
}

func (r *Router) progress(ctx context.Context, user *domain.User, args string) (Reply, error) {
	if args == "" {
		return r.recommendations(ctx, user)
	}
	idArg, pctArg, _ := strings.Cut(args, " ")
	id, ok := parseID(idArg)
	pct, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(pctArg), "%"))
	if !ok || err != nil {
		return Reply{Text: "❌ Формат: /progress [id] [процент]"}, nil
	}
	upd, err := r.svc.Goals.UpdateProgress(ctx, user.ID, id, pct)
	if err != nil {
		return failure(err)
	}
	text := fmt.Sprintf("📈 %s\n%s %d%%", upd.Goal.Title, progressBar(upd.Goal.Progress), upd.Goal.Progress)
	if upd.Achieved {
		text += "\n\n🏆 Цель достигнута! " + xpLine(upd.XP)
	}
	return Reply{Text: text}, nil
}

func (r *Router) recommendations(ctx context.Context, user *domain.User) (Reply, error) {
	recs, err := r.svc.Goals.Recommendations(ctx, user.ID)
	if err != nil {
		return failure(err)
	}
	if len(recs) == 0 {
		return Reply{Text: "🚀 У тебя пока нет активных целей. Создай первую: /goal [название]"}, nil
	}
	var b strings.Builder
	b.WriteString("💡 Рекомендации:\n\n")
	for i, rec := range recs {
		var msg string
		switch rec.Kind {
		case app.RecommendStart:
			msg = fmt.Sprintf("🚀 Начни работу над целью \"%s\": сделай первый шаг сегодня.", rec.Goal.Title)
		case app.RecommendContinue:
			msg = fmt.Sprintf("💪 Продолжай работу над \"%s\": уже %d%%.", rec.Goal.Title, rec.Goal.Progress)
		default:
			msg = fmt.Sprintf("🏁 Цель \"%s\" почти достигнута (%d%%). Дожми!", rec.Goal.Title, rec.Goal.Progress)
		}
		fmt.Fprintf(&b, "%d. %s\n\n", i+1, msg)
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n")}, nil
}

func (r *Router) completeGoal(ctx context.Context, user *domain.User, args string) (Reply, error) {
	id, ok := parseID(args)
	if !ok {
		return Reply{Text: "❌ Укажи ID цели: /done [id]"}, nil
	}
	upd, err := r.svc.Goals.Complete(ctx, user.ID, id)
	if err != nil {
		return failure(err)
	}
	if !upd.Achieved {
		return Reply{Text: fmt.Sprintf("👌 Цель \"%s\" уже выполнена", upd.Goal.Title)}, nil
	}
	return Reply{Text: fmt.Sprintf("🏆 Цель \"%s\" выполнена!\n\n%s", upd.Goal.Title, xpLine(upd.XP))}, nil
}

// --- stats ---

func (r *Router) stats(ctx context.Context, user *domain.User) (Reply, error) {
	st, err := r.svc.Users.Stats(ctx, user.ID)
	if err != nil {
		return failure(err)
	}
	text := fmt.Sprintf(`📊 Твоя статистика:

👤 Уровень: %d | XP: %d

📝 Задачи:
   Всего: %d
   Выполнено: %d
   В работе: %d

🍅 Pomodoro:
   Сессий: %d
   Завершено: %d
   Время фокуса: %s

✅ Привычки:
   Активных: %d
   Общий streak: %d
   Лучший streak: %d
   Отметок за неделю: %d

💪 Продолжай в том же духе!`,
		st.User.Level, st.User.XP,
		st.Tasks.Total, st.Tasks.Completed, st.Tasks.Pending,
		st.Pomodoro.TotalSessions, st.Pomodoro.CompletedSessions, formatMinutes(st.Pomodoro.TotalMinutes),
		st.Habits.ActiveHabits, st.Habits.TotalStreak, st.Habits.BestStreak, st.Habits.WeekCompleted)
	return Reply{Text: text}, nil
}
