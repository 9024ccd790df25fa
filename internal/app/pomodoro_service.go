package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"prodmax/internal/clock"
	"prodmax/internal/domain"
)

// SessionEventKind names a session lifecycle transition.
type SessionEventKind string

// Session lifecycle transitions reported to the notifier.
const (
	SessionStarted SessionEventKind = "started"
	SessionStopped SessionEventKind = "stopped"
	SessionExpired SessionEventKind = "expired"
)

// SessionEvent describes one transition. XP is set only for expiries that
// granted points.
type SessionEvent struct {
	Kind    SessionEventKind
	Session domain.PomodoroSession
	EndsAt  time.Time
	XP      *domain.XPGrant
}

// SessionNotifier is informed of session transitions. Notification errors
// are logged and never undo a transition.
type SessionNotifier interface {
	NotifySession(ctx context.Context, ev SessionEvent) error
}

// PomodoroConfig tunes the scheduler.
type PomodoroConfig struct {
	DefaultMinutes int
	MaxMinutes     int
	XPAward        int
	// PersistTimeout bounds persistence calls made from expiry callbacks.
	PersistTimeout time.Duration
}

// DefaultPomodoroConfig returns the classic 25-minute, 15 XP setup.
func DefaultPomodoroConfig() PomodoroConfig {
	return PomodoroConfig{
		DefaultMinutes: domain.DefaultSessionMinutes,
		MaxMinutes:     240,
		XPAward:        domain.XPPomodoroCompleted,
		PersistTimeout: 10 * time.Second,
	}
}

// PomodoroDeps groups the collaborators of PomodoroService.
type PomodoroDeps struct {
	Sessions domain.PomodoroRepository
	Tasks    domain.TaskRepository
	XP       XPGranter
	Registry *SessionRegistry
	Notifier SessionNotifier
	Clock    clock.Clock
	Logger   *slog.Logger
}

// PomodoroService bridges the in-process SessionRegistry and the persisted
// session rows. It is the only writer of pomodoro session rows.
//
// Start checks registry availability before inserting the row, so a rejected
// start never leaves an orphaned row behind. XP is granted only on natural
// expiry, and only by the call that flipped the row to completed.
type PomodoroService struct {
	repo     domain.PomodoroRepository
	tasks    domain.TaskRepository
	xp       XPGranter
	registry *SessionRegistry
	notifier SessionNotifier
	clk      clock.Clock
	logger   *slog.Logger
	cfg      PomodoroConfig
}

// NewPomodoroService creates the scheduler. Zero config fields fall back to
// DefaultPomodoroConfig.
func NewPomodoroService(deps PomodoroDeps, cfg PomodoroConfig) *PomodoroService {
	def := DefaultPomodoroConfig()
	if cfg.DefaultMinutes <= 0 {
		cfg.DefaultMinutes = def.DefaultMinutes
	}
	if cfg.MaxMinutes <= 0 {
		cfg.MaxMinutes = def.MaxMinutes
	}
	if cfg.XPAward <= 0 {
		cfg.XPAward = def.XPAward
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = def.PersistTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PomodoroService{
		repo:     deps.Sessions,
		tasks:    deps.Tasks,
		xp:       deps.XP,
		registry: deps.Registry,
		notifier: deps.Notifier,
		clk:      deps.Clock,
		logger:   logger.With("component", "pomodoro"),
		cfg:      cfg,
	}
}

// StartedSession is the outcome of a successful start.
type StartedSession struct {
	Session *domain.PomodoroSession
	EndsAt  time.Time
}

// SessionStatus is the read-only view of a running session.
type SessionStatus struct {
	SessionID int64
	Remaining time.Duration
	EndsAt    time.Time
}

// StoppedSession is the outcome of an early stop.
type StoppedSession struct {
	SessionID int64
	Elapsed   time.Duration
}

// ExpiryResult is the outcome of a completion attempt.
type ExpiryResult struct {
	// Granted is false when the row was already completed or aborted.
	Granted bool
	XP      *domain.XPGrant
}

// Start begins a session of the given length (0 means the default). It fails
// with *AlreadyRunningError while the user has a session running.
func (s *PomodoroService) Start(ctx context.Context, userID int64, taskID *int64, minutes int) (*StartedSession, error) {
	if minutes == 0 {
		minutes = s.cfg.DefaultMinutes
	}
	if minutes < 0 || minutes > s.cfg.MaxMinutes {
		return nil, fmt.Errorf("%w: %d minutes (allowed 1..%d)", ErrInvalidDuration, minutes, s.cfg.MaxMinutes)
	}
	if taskID != nil {
		task, err := s.tasks.GetTask(ctx, userID, *taskID)
		if err != nil {
			return nil, fmt.Errorf("get task: %w", err)
		}
		if task == nil {
			return nil, ErrTaskNotFound
		}
	}

	res, err := s.registry.Reserve(userID, time.Duration(minutes)*time.Minute)
	if err != nil {
		return nil, err
	}

	session, err := s.repo.CreateSession(ctx, userID, taskID, minutes, res.StartedAt())
	if err != nil {
		res.Release()
		return nil, fmt.Errorf("create session: %w", err)
	}

	active, err := res.Activate(session.ID, s.onExpire)
	if err != nil {
		// Stopped while the row was being written.
		if abortErr := s.repo.MarkSessionAborted(ctx, session.ID, s.clk.Now()); abortErr != nil {
			s.logger.Error("abort cancelled session", "session_id", session.ID, "error", abortErr)
		}
		return nil, fmt.Errorf("session %d stopped before start completed: %w", session.ID, err)
	}

	s.logger.Info("session started", "user_id", userID, "session_id", session.ID, "minutes", minutes, "ends_at", active.EndsAt)
	s.notify(ctx, SessionEvent{Kind: SessionStarted, Session: *session, EndsAt: active.EndsAt})
	return &StartedSession{Session: session, EndsAt: active.EndsAt}, nil
}

// Stop aborts the user's running session. No XP is granted.
func (s *PomodoroService) Stop(ctx context.Context, userID int64) (*StoppedSession, error) {
	active, err := s.registry.Cancel(userID)
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()
	out := &StoppedSession{SessionID: active.SessionID, Elapsed: now.Sub(active.StartedAt)}
	if active.SessionID == 0 {
		// Start is still persisting; it aborts the row once Activate fails.
		return out, nil
	}

	if err := s.repo.MarkSessionAborted(ctx, active.SessionID, now); err != nil {
		return out, fmt.Errorf("abort session: %w", err)
	}
	s.logger.Info("session stopped", "user_id", userID, "session_id", active.SessionID, "elapsed", out.Elapsed.Round(time.Second))

	session := domain.PomodoroSession{ID: active.SessionID, UserID: userID, StartedAt: active.StartedAt, AbortedAt: &now}
	s.notify(ctx, SessionEvent{Kind: SessionStopped, Session: session, EndsAt: active.EndsAt})
	return out, nil
}

// Status reports the remaining time of the user's running session.
func (s *PomodoroService) Status(userID int64) (*SessionStatus, error) {
	active, ok := s.registry.Get(userID)
	if !ok {
		return nil, ErrSessionNotRunning
	}
	return &SessionStatus{
		SessionID: active.SessionID,
		Remaining: active.Remaining(s.clk.Now()),
		EndsAt:    active.EndsAt,
	}, nil
}

// Expire completes a session on natural expiry: it removes the registry
// entry if still present, marks the row completed and grants XP. Repeated
// calls for the same session grant XP at most once.
func (s *PomodoroService) Expire(ctx context.Context, userID, sessionID int64) (*ExpiryResult, error) {
	s.registry.Complete(userID, sessionID)
	return s.complete(ctx, userID, sessionID)
}

func (s *PomodoroService) onExpire(a ActiveSession) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PersistTimeout)
	defer cancel()
	if _, err := s.complete(ctx, a.Owner, a.SessionID); err != nil {
		// The registry entry is already gone; the session counts as finished
		// at its scheduled time even though the row may lag.
		s.logger.Error("complete expired session", "user_id", a.Owner, "session_id", a.SessionID, "error", err)
	}
}

func (s *PomodoroService) complete(ctx context.Context, userID, sessionID int64) (*ExpiryResult, error) {
	now := s.clk.Now()
	changed, err := s.repo.MarkSessionCompleted(ctx, userID, sessionID, now)
	if err != nil {
		return nil, fmt.Errorf("mark session completed: %w", err)
	}
	if !changed {
		s.logger.Debug("session already finalised", "user_id", userID, "session_id", sessionID)
		return &ExpiryResult{}, nil
	}

	res := &ExpiryResult{Granted: true}
	grant, err := s.xp.GrantXP(ctx, userID, s.cfg.XPAward)
	if err != nil {
		return res, fmt.Errorf("grant xp: %w", err)
	}
	res.XP = &grant
	s.logger.Info("session completed", "user_id", userID, "session_id", sessionID, "xp", grant.Gained, "level", grant.NewLevel)

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil || session == nil {
		session = &domain.PomodoroSession{ID: sessionID, UserID: userID, CompletedAt: &now}
	}
	s.notify(ctx, SessionEvent{Kind: SessionExpired, Session: *session, EndsAt: now, XP: &grant})
	return res, nil
}

// Stats returns the user's session counters.
func (s *PomodoroService) Stats(ctx context.Context, userID int64) (domain.PomodoroStats, error) {
	return s.repo.PomodoroStats(ctx, userID)
}

// ReconcileOrphans marks sessions left running by a previous process as
// aborted. Call it before serving, while the registry is still empty.
func (s *PomodoroService) ReconcileOrphans(ctx context.Context) (int64, error) {
	if n := s.registry.Len(); n > 0 {
		return 0, errors.New("reconcile orphans: registry not empty")
	}
	n, err := s.repo.AbortOrphanedSessions(ctx, s.clk.Now())
	if err != nil {
		return 0, fmt.Errorf("abort orphaned sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("aborted orphaned sessions", "count", n)
	}
	return n, nil
}

// Shutdown stops all timers and waits, bounded by ctx, for expiry callbacks
// that are already completing their rows. Sessions still running are left
// for the next process's ReconcileOrphans.
func (s *PomodoroService) Shutdown(ctx context.Context) error {
	left := s.registry.Shutdown()
	if len(left) > 0 {
		s.logger.Warn("shutdown with running sessions", "count", len(left))
	}
	if err := s.registry.Wait(ctx); err != nil {
		return fmt.Errorf("wait for expiry callbacks: %w", err)
	}
	return nil
}

func (s *PomodoroService) notify(ctx context.Context, ev SessionEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifySession(ctx, ev); err != nil {
		s.logger.Warn("notify session event", "kind", ev.Kind, "session_id", ev.Session.ID, "error", err)
	}
}
