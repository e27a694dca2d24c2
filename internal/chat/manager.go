package chat

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ecochat/internal/models"
	"ecochat/internal/store"
)

// Manager hands out one Controller per session and tracks which session
// is current. The app is never without a current session: deleting it
// promotes the newest remaining session or creates a fresh one.
type Manager struct {
	store   *store.Client
	answers AnswerProvider
	logger  *zap.Logger

	mu          sync.Mutex
	controllers map[string]*Controller
	currentID   string
}

// NewManager wires the session store and answer provider.
func NewManager(st *store.Client, answers AnswerProvider, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:       st,
		answers:     answers,
		logger:      logger,
		controllers: make(map[string]*Controller),
	}
}

// Current returns the controller for the current session, restoring it
// from the store or creating a first session on initial load.
func (m *Manager) Current(ctx context.Context) (*Controller, error) {
	m.mu.Lock()
	id := m.currentID
	m.mu.Unlock()

	if id != "" {
		if ctrl, err := m.Controller(ctx, id); err == nil {
			return ctrl, nil
		}
		// current session disappeared under us; fall through and reassign
	}

	sessions, err := m.store.GetAllSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore sessions: %w", err)
	}
	if len(sessions) > 0 {
		return m.Select(ctx, sessions[0].ID)
	}
	return m.NewSession(ctx)
}

// Controller returns (building if needed) the controller for session id.
func (m *Manager) Controller(ctx context.Context, id string) (*Controller, error) {
	m.mu.Lock()
	if ctrl, ok := m.controllers[id]; ok {
		m.mu.Unlock()
		return ctrl, nil
	}
	m.mu.Unlock()

	session, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := m.store.GetMessages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	ctrl := newController(session, history, m.store, m.answers, m.logger)
	ctrl.onRebind = m.rebind

	m.mu.Lock()
	// A racing request may have built one; keep the first.
	if existing, ok := m.controllers[id]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.controllers[id] = ctrl
	m.mu.Unlock()
	return ctrl, nil
}

// Select makes the session current and returns its controller.
func (m *Manager) Select(ctx context.Context, id string) (*Controller, error) {
	ctrl, err := m.Controller(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.currentID = ctrl.Session().ID
	m.mu.Unlock()
	return ctrl, nil
}

// NewSession creates a placeholder session and makes it current. Its real
// title arrives with the first accepted message.
func (m *Manager) NewSession(ctx context.Context) (*Controller, error) {
	session, err := m.store.CreateSession(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	ctrl := newController(session, nil, m.store, m.answers, m.logger)
	ctrl.onRebind = m.rebind

	m.mu.Lock()
	m.controllers[session.ID] = ctrl
	m.currentID = session.ID
	m.mu.Unlock()
	return ctrl, nil
}

// Delete removes the session. When the current session goes away another
// one takes its place immediately.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	deleted := m.store.DeleteSession(ctx, id)

	m.mu.Lock()
	delete(m.controllers, id)
	wasCurrent := m.currentID == id
	if wasCurrent {
		m.currentID = ""
	}
	m.mu.Unlock()

	if !wasCurrent {
		return deleted, nil
	}
	if _, err := m.Current(ctx); err != nil {
		return deleted, fmt.Errorf("reassign current session: %w", err)
	}
	return deleted, nil
}

// CurrentID exposes the current session id for rendering.
func (m *Manager) CurrentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentID
}

// rebind follows a controller whose placeholder session was replaced.
func (m *Manager) rebind(oldID, newID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctrl, ok := m.controllers[oldID]; ok {
		delete(m.controllers, oldID)
		m.controllers[newID] = ctrl
	}
	if m.currentID == oldID {
		m.currentID = newID
	}
	m.logger.Info("session promoted", zap.String("old_id", oldID), zap.String("new_id", newID))
}

// Sessions lists sessions for the sidebar/history views.
func (m *Manager) Sessions(ctx context.Context) ([]*models.Session, error) {
	return m.store.GetAllSessions(ctx)
}
