package interview

import (
	"errors"
	"fmt"
	"sync"

	"github.com/eduforge/coursegen-backend/internal/course"
	"github.com/eduforge/coursegen-backend/internal/generate"
	"github.com/eduforge/coursegen-backend/internal/knowledge"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
)

// ErrSessionActive is returned when a second interview is started for a
// key that already has a live one. Callers treat it as a no-op, not a
// user-visible failure.
var ErrSessionActive = errors.New("interview session already active")

// Manager enforces at-most-one active interview per (tenant, user).
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	log       *logger.Logger
	responder generate.Responder
	gen       *generate.Client
	index     *knowledge.Index
}

func NewManager(log *logger.Logger, responder generate.Responder, gen *generate.Client, index *knowledge.Index) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		log:       log.With("service", "InterviewManager"),
		responder: responder,
		gen:       gen,
		index:     index,
	}
}

func sessionKey(tc course.TeacherContext) string {
	return fmt.Sprintf("%s/%d", tc.TenantID, tc.UserID)
}

// Begin creates a session for the key, rejecting a second live one.
func (m *Manager) Begin(tc course.TeacherContext) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionKey(tc)
	if existing, ok := m.sessions[key]; ok && existing.State() != StateCompleted {
		return nil, ErrSessionActive
	}
	s := NewSession(m.log, m.responder, m.gen, m.index, tc)
	m.sessions[key] = s
	return s, nil
}

// Get returns the live session for the key, if any.
func (m *Manager) Get(tc course.TeacherContext) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey(tc)]
	return s, ok
}

// End drops the session for the key so a new interview can start.
func (m *Manager) End(tc course.TeacherContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionKey(tc))
}
