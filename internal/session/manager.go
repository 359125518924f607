// Package session owns the lifecycle of driving sessions: opening,
// quota-bounded rotation, invalidation, and teardown.
package session

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/jmwhit/docdriver/internal/batch"
	"github.com/jmwhit/docdriver/internal/progress"
)

// State is the lifecycle state of the managed session.
type State string

// Manager states.
const (
	StateClosed  State = "closed"
	StateOpening State = "opening"
	StateOpen    State = "open"
)

// Dialer opens a fresh authenticated session from persisted credentials.
type Dialer interface {
	Open(ctx context.Context) (batch.Session, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (batch.Session, error)

// Open implements Dialer.
func (f DialerFunc) Open(ctx context.Context) (batch.Session, error) {
	return f(ctx)
}

// Manager implements batch.SessionProvider. At most one session is open at
// a time; it serves at most quota successful items before mandatory
// rotation. The manager is not safe for concurrent use; the batch loop is
// strictly sequential by design.
type Manager struct {
	dialer  Dialer
	quota   int
	loginRe *regexp.Regexp
	emitter progress.Emitter
	clock   batch.Clock
	logger  *zap.Logger

	state     State
	current   batch.Session
	processed int
	opened    int
}

// NewManager builds a Manager. loginPattern is matched against the
// post-open landing location; a match means the persisted credentials are
// gone and the run cannot continue unattended.
func NewManager(
	dialer Dialer,
	quota int,
	loginPattern string,
	emitter progress.Emitter,
	clock batch.Clock,
	logger *zap.Logger,
) (*Manager, error) {
	if quota <= 0 {
		return nil, fmt.Errorf("session quota must be > 0, got %d", quota)
	}
	loginRe, err := regexp.Compile(loginPattern)
	if err != nil {
		return nil, fmt.Errorf("compile login pattern: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		dialer:  dialer,
		quota:   quota,
		loginRe: loginRe,
		emitter: emitter,
		clock:   clock,
		logger:  logger,
		state:   StateClosed,
	}, nil
}

// Acquire returns the current session handle, rotating first when the
// quota is exhausted and opening a fresh session when none exists.
// Rotation is transparent to the caller beyond the added latency.
func (m *Manager) Acquire(ctx context.Context) (batch.Session, error) {
	if m.state == StateOpen && m.processed >= m.quota {
		m.logger.Info("session quota exhausted, rotating",
			zap.Int("quota", m.quota),
			zap.Int("processed", m.processed),
		)
		m.closeCurrent(ctx)
	}
	if m.current == nil {
		if err := m.open(ctx); err != nil {
			return nil, err
		}
	}
	return m.current, nil
}

// Release reports how the borrowed handle was used. Only a successful item
// consumes quota: a failed item performed no meaningful remote mutation.
func (m *Manager) Release(_ context.Context, itemSucceeded bool) {
	if m.current == nil {
		return
	}
	if itemSucceeded {
		m.processed++
	}
}

// Invalidate discards the current session immediately, regardless of
// quota. The next Acquire opens a replacement.
func (m *Manager) Invalidate(ctx context.Context) {
	if m.current == nil {
		return
	}
	m.logger.Warn("discarding invalid session", zap.Int("processed", m.processed))
	m.closeCurrent(ctx)
}

// Exhausted reports whether the current session has reached its quota.
func (m *Manager) Exhausted() bool {
	return m.state == StateOpen && m.processed >= m.quota
}

// SessionsOpened returns how many sessions this manager has opened.
func (m *Manager) SessionsOpened() int {
	return m.opened
}

// Close tears down the current session, if any.
func (m *Manager) Close(ctx context.Context) {
	m.closeCurrent(ctx)
}

func (m *Manager) open(ctx context.Context) error {
	m.state = StateOpening
	sess, err := m.dialer.Open(ctx)
	if err != nil {
		m.state = StateClosed
		return fmt.Errorf("open session: %w", err)
	}

	loc, err := sess.Location(ctx)
	if err != nil {
		m.closeSession(ctx, sess)
		m.state = StateClosed
		return fmt.Errorf("verify session location: %w", err)
	}
	if m.loginRe.MatchString(loc) {
		m.closeSession(ctx, sess)
		m.state = StateClosed
		return fmt.Errorf("landed on %s: %w", loc, batch.ErrSessionExpired)
	}

	m.current = sess
	m.processed = 0
	m.state = StateOpen
	m.opened++
	m.logger.Info("session opened", zap.Int("window", m.opened), zap.String("location", loc))
	if m.emitter != nil {
		m.emitter.Emit(progress.Event{
			Stage: progress.StageSessionOpen,
			TS:    m.clock.Now(),
		})
	}
	return nil
}

func (m *Manager) closeCurrent(ctx context.Context) {
	if m.current != nil {
		m.closeSession(ctx, m.current)
		m.current = nil
	}
	m.processed = 0
	m.state = StateClosed
}

func (m *Manager) closeSession(ctx context.Context, sess batch.Session) {
	if err := sess.Close(ctx); err != nil {
		m.logger.Warn("session close failed", zap.Error(err))
	}
}
