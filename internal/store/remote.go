package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ecochat/internal/models"
)

const probeTimeout = 2 * time.Second

// Remote talks to the external session/message service.
type Remote struct {
	baseURL string
	http    *http.Client
}

// NewRemote builds a Remote against baseURL. The timeout bounds every
// individual call so a hung backend degrades instead of blocking a page.
func NewRemote(baseURL string, timeout time.Duration) *Remote {
	return &Remote{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Available probes the session list endpoint with a short budget.
func (r *Remote) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/chat/sessions", nil)
	if err != nil {
		return false
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

type remoteSession struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	FirstMessage string    `json:"first_message"`
}

func (rs remoteSession) toModel() *models.Session {
	return &models.Session{
		ID:           rs.ID,
		Title:        rs.Title,
		CreatedAt:    rs.CreatedAt,
		UpdatedAt:    rs.UpdatedAt,
		MessageCount: rs.MessageCount,
		FirstMessage: rs.FirstMessage,
	}
}

func (r *Remote) CreateSession(ctx context.Context, title string) (*models.Session, error) {
	payload, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	resp, err := r.do(ctx, http.MethodPost, "/chat/sessions", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body remoteSession
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if body.ID == "" {
		return nil, fmt.Errorf("backend returned session without id")
	}
	now := time.Now().UTC()
	session := body.toModel()
	if title != "" {
		session.Title = title
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}
	return session, nil
}

func (r *Remote) GetAllSessions(ctx context.Context) ([]*models.Session, error) {
	resp, err := r.do(ctx, http.MethodGet, "/chat/sessions", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body []remoteSession
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	sessions := make([]*models.Session, 0, len(body))
	for _, rs := range body {
		sessions = append(sessions, rs.toModel())
	}
	return sessions, nil
}

// GetSession resolves a single session from the list endpoint; the
// backend exposes no per-session read.
func (r *Remote) GetSession(ctx context.Context, id string) (*models.Session, error) {
	sessions, err := r.GetAllSessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateSessionTitle is not part of the backend contract; titles are
// fixed at creation time. Callers retitle by recreating the session.
func (r *Remote) UpdateSessionTitle(ctx context.Context, id, title string) error {
	return ErrUnsupported
}

func (r *Remote) DeleteSession(ctx context.Context, id string) error {
	resp, err := r.do(ctx, http.MethodDelete, "/chat/sessions/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

type remoteMessage struct {
	SessionID string          `json:"session_id"`
	Role      models.Role     `json:"role"`
	Content   string          `json:"content"`
	Sources   []models.Source `json:"sources,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (r *Remote) SaveMessage(ctx context.Context, msg *models.Message) error {
	payload, err := json.Marshal(remoteMessage{
		SessionID: msg.SessionID,
		Role:      msg.Role,
		Content:   msg.Content,
		Sources:   msg.Sources,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	resp, err := r.do(ctx, http.MethodPost, "/chat/messages", payload)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (r *Remote) GetMessages(ctx context.Context, id string) ([]*models.Message, error) {
	resp, err := r.do(ctx, http.MethodGet, "/chat/messages?session_id="+url.QueryEscape(id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body []remoteMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	msgs := make([]*models.Message, 0, len(body))
	for _, rm := range body {
		msgs = append(msgs, &models.Message{
			SessionID: id,
			Role:      rm.Role,
			Content:   rm.Content,
			Sources:   rm.Sources,
			CreatedAt: rm.CreatedAt,
		})
	}
	return msgs, nil
}

// do issues one backend call and normalizes non-2xx statuses to errors.
func (r *Remote) do(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var body *bytes.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
		}
		return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return resp, nil
}
