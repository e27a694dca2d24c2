package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ecochat/internal/models"
)

// OfflineIDPrefix tags locally synthesized session ids. The prefix lets
// every later call classify an id without re-probing the backend; an
// offline-tagged id is never sent to the backend.
const OfflineIDPrefix = "offline-"

// IsOfflineID reports whether id was synthesized by the offline registry.
func IsOfflineID(id string) bool {
	return strings.HasPrefix(id, OfflineIDPrefix)
}

// Registry is the transient in-memory session store used while the
// persistence backend is unreachable. It also caches messages written
// against backend-issued ids that could not be synced.
//
// All state is guarded by mu: concurrent requests (several browser tabs
// against one process) may hit the registry at once.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	messages map[string][]*models.Message // keyed by session id, offline or backend
	order    map[string]int               // insertion order for stable listing
	seq      int
}

// NewRegistry builds an empty offline registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*models.Session),
		messages: make(map[string][]*models.Message),
		order:    make(map[string]int),
	}
}

// CreateSession synthesizes an offline-tagged session.
func (r *Registry) CreateSession(ctx context.Context, title string) (*models.Session, error) {
	now := time.Now().UTC()
	if title == "" {
		title = "대화 " + now.Format("2006-01-02 15:04")
	}
	session := &models.Session{
		ID:        OfflineIDPrefix + uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.mu.Lock()
	r.sessions[session.ID] = session
	r.seq++
	r.order[session.ID] = r.seq
	r.mu.Unlock()
	return session, nil
}

// GetAllSessions lists registered sessions, newest created first; ties
// go to the later insertion.
func (r *Registry) GetAllSessions(ctx context.Context) ([]*models.Session, error) {
	r.mu.Lock()
	sessions := make([]*models.Session, 0, len(r.sessions))
	orders := make(map[string]int, len(r.sessions))
	for id, s := range r.sessions {
		copied := *s
		sessions = append(sessions, &copied)
		orders[id] = r.order[id]
	}
	r.mu.Unlock()

	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return orders[sessions[i].ID] > orders[sessions[j].ID]
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (r *Registry) GetSession(ctx context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *Registry) UpdateSessionTitle(ctx context.Context, id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Title = title
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Registry) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.sessions, id)
	delete(r.messages, id)
	delete(r.order, id)
	return nil
}

// SaveMessage appends to the session's log and maintains the session's
// derived fields. For backend-issued ids the message is accepted even
// though no registered session exists; it is an unsynced cache entry.
func (r *Registry) SaveMessage(ctx context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *msg
	r.messages[msg.SessionID] = append(r.messages[msg.SessionID], &copied)

	if s, ok := r.sessions[msg.SessionID]; ok {
		s.UpdatedAt = time.Now().UTC()
		s.MessageCount = len(r.messages[msg.SessionID])
		if s.FirstMessage == "" && msg.Role == models.RoleUser {
			s.FirstMessage = previewOf(msg.Content)
		}
	}
	return nil
}

func (r *Registry) GetMessages(ctx context.Context, id string) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[id]
	out := make([]*models.Message, 0, len(msgs))
	for _, m := range msgs {
		copied := *m
		out = append(out, &copied)
	}
	return out, nil
}

// previewOf truncates content to the stored first-message preview.
func previewOf(content string) string {
	runes := []rune(content)
	if len(runes) <= 100 {
		return content
	}
	return string(runes[:100]) + "..."
}
