package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"ecochat/internal/models"
)

// Client is the session store the rest of the app talks to. It dispatches
// between a durable backend and the offline registry, classifying session
// ids by the reserved offline prefix. Backend failures degrade to the
// registry instead of propagating; the caller at most sees a false
// success flag and a warning notice.
type Client struct {
	backend Backend // nil in memory-only mode
	offline *Registry
	logger  *zap.Logger

	mu     sync.Mutex
	notice string
}

// NewClient wires a backend (may be nil) with a fresh offline registry.
func NewClient(backend Backend, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		backend: backend,
		offline: NewRegistry(),
		logger:  logger,
	}
}

// IsBackendAvailable re-probes the backend; the verdict is never cached.
func (c *Client) IsBackendAvailable(ctx context.Context) bool {
	return c.backend != nil && c.backend.Available(ctx)
}

// Notice returns and clears the latest degradation notice for the UI.
func (c *Client) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.notice
	c.notice = ""
	return n
}

func (c *Client) degrade(op string, err error) {
	c.logger.Warn("session backend degraded", zap.String("op", op), zap.Error(err))
	c.mu.Lock()
	c.notice = "대화 저장소에 연결할 수 없어 이 대화는 임시로만 보관됩니다."
	c.mu.Unlock()
}

// CreateSession creates remotely when the backend is reachable, otherwise
// synthesizes an offline-tagged session in the registry.
func (c *Client) CreateSession(ctx context.Context, title string) (*models.Session, error) {
	if c.IsBackendAvailable(ctx) {
		session, err := c.backend.CreateSession(ctx, title)
		if err == nil {
			return session, nil
		}
		c.degrade("create_session", err)
	}
	return c.offline.CreateSession(ctx, title)
}

// GetAllSessions merges backend sessions with the offline registry,
// newest created first. Under an outage only the registry contents are
// returned, so a just-created offline session always survives.
func (c *Client) GetAllSessions(ctx context.Context) ([]*models.Session, error) {
	offline, _ := c.offline.GetAllSessions(ctx)

	var backend []*models.Session
	if c.IsBackendAvailable(ctx) {
		var err error
		backend, err = c.backend.GetAllSessions(ctx)
		if err != nil {
			c.degrade("get_all_sessions", err)
			backend = nil
		}
	}

	merged := make([]*models.Session, 0, len(backend)+len(offline))
	merged = append(merged, backend...)
	merged = append(merged, offline...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged, nil
}

func (c *Client) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if IsOfflineID(id) {
		return c.offline.GetSession(ctx, id)
	}
	if c.IsBackendAvailable(ctx) {
		session, err := c.backend.GetSession(ctx, id)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, ErrNotFound) {
			c.degrade("get_session", err)
		}
	}
	return c.offline.GetSession(ctx, id)
}

// UpdateSessionTitle reports whether the new title was applied anywhere.
func (c *Client) UpdateSessionTitle(ctx context.Context, id, title string) bool {
	if IsOfflineID(id) {
		return c.offline.UpdateSessionTitle(ctx, id, title) == nil
	}
	if c.IsBackendAvailable(ctx) {
		err := c.backend.UpdateSessionTitle(ctx, id, title)
		if err == nil {
			return true
		}
		if !errors.Is(err, ErrUnsupported) {
			c.degrade("update_session_title", err)
		}
	}
	return c.offline.UpdateSessionTitle(ctx, id, title) == nil
}

// DeleteSession reports success; false means the session still exists on
// the backend and any unsynced message cache for it is kept.
func (c *Client) DeleteSession(ctx context.Context, id string) bool {
	if IsOfflineID(id) {
		return c.offline.DeleteSession(ctx, id) == nil
	}
	if !c.IsBackendAvailable(ctx) {
		c.degrade("delete_session", ErrUnsupported)
		return false
	}
	if err := c.backend.DeleteSession(ctx, id); err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.degrade("delete_session", err)
		}
		return false
	}
	// Gone from the backend; the cache entry has nothing left to sync
	// against.
	c.offline.DeleteSession(ctx, id)
	return true
}

// SaveMessage persists best-effort. A false return means the message was
// only cached locally; the conversation proceeds regardless.
func (c *Client) SaveMessage(ctx context.Context, msg *models.Message) bool {
	if IsOfflineID(msg.SessionID) {
		return c.offline.SaveMessage(ctx, msg) == nil
	}
	if c.IsBackendAvailable(ctx) {
		err := c.backend.SaveMessage(ctx, msg)
		if err == nil {
			return true
		}
		c.degrade("save_message", err)
	}
	// Keep the turn in the unsynced cache so GetMessages still sees it.
	c.offline.SaveMessage(ctx, msg)
	return false
}

// GetMessages returns the session's log. For backend ids the result is
// the union of backend messages and locally cached unsynced ones, in
// timestamp order.
func (c *Client) GetMessages(ctx context.Context, id string) ([]*models.Message, error) {
	cached, _ := c.offline.GetMessages(ctx, id)
	if IsOfflineID(id) {
		return cached, nil
	}

	var backend []*models.Message
	if c.IsBackendAvailable(ctx) {
		var err error
		backend, err = c.backend.GetMessages(ctx, id)
		if err != nil {
			c.degrade("get_messages", err)
			backend = nil
		}
	}

	merged := make([]*models.Message, 0, len(backend)+len(cached))
	merged = append(merged, backend...)
	merged = append(merged, cached...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged, nil
}

// SearchSessions filters GetAllSessions by case-insensitive substring
// match on the title and the cached first-message preview.
func (c *Client) SearchSessions(ctx context.Context, query string) ([]*models.Session, error) {
	sessions, err := c.GetAllSessions(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return sessions, nil
	}
	var matched []*models.Session
	for _, s := range sessions {
		if strings.Contains(strings.ToLower(s.Title), query) ||
			(s.FirstMessage != "" && strings.Contains(strings.ToLower(s.FirstMessage), query)) {
			matched = append(matched, s)
		}
	}
	return matched, nil
}
