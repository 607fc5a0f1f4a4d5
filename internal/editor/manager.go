package editor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// DefaultIdleTimeout is how long an admin browser may stay silent before its
// editor is closed by the sweep.
const DefaultIdleTimeout = 30 * time.Minute

type managed struct {
	ctrl     *Controller
	lastSeen time.Time
}

// Manager keeps one Controller per admin browser session and closes the ones
// that went idle. Controllers are built from a shared Options value.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*managed

	opts   Options
	idle   time.Duration
	logger *slog.Logger
	now    func() time.Time
	cron   *cron.Cron
}

// NewManager creates a manager. idle <= 0 selects DefaultIdleTimeout.
func NewManager(opts Options, idle time.Duration) *Manager {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*managed),
		opts:     opts,
		idle:     idle,
		logger:   logger,
		now:      now,
	}
}

// NewSessionID returns a fresh browser session id.
func NewSessionID() string {
	return uuid.NewString()
}

// Controller returns the controller bound to id, creating it on first use.
// An empty or malformed id gets a new one; the id actually used is returned.
func (m *Manager) Controller(id string) (string, *Controller) {
	if _, err := uuid.Parse(id); err != nil {
		id = NewSessionID()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		e = &managed{ctrl: NewController(m.opts)}
		m.sessions[id] = e
	}
	e.lastSeen = m.now()
	return id, e.ctrl
}

// Len returns the number of tracked browser sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes and forgets every controller idle for longer than the idle
// timeout. Unsaved changes of an abandoned editor are discarded.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idle)

	m.mu.Lock()
	var stale []*Controller
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.ctrl)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, c := range stale {
		if _, err := c.Close(Confirmed(true)); err != nil {
			m.logger.Warn("Failed to close idle editor", "error", err)
		}
	}
	if len(stale) > 0 {
		m.logger.Info("Closed idle editors", "count", len(stale))
	}
	return len(stale)
}

// Start runs the sweep on the given cron schedule (e.g. "@every 1m").
func (m *Manager) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { m.Sweep() }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	m.cron = c
	c.Start()
	return nil
}

// Stop halts the sweep and closes every controller.
func (m *Manager) Stop() {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*managed)
	m.mu.Unlock()
	for _, e := range all {
		_, _ = e.ctrl.Close(Confirmed(true))
	}
}
