package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ecochat/internal/models"
)

// fakeSessionAPI implements the session backend HTTP contract in memory.
type fakeSessionAPI struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]map[string]any
	messages map[string][]map[string]any
}

func newFakeSessionAPI(t *testing.T) (*fakeSessionAPI, *httptest.Server) {
	t.Helper()
	api := &fakeSessionAPI{
		sessions: make(map[string]map[string]any),
		messages: make(map[string][]map[string]any),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/sessions", api.handleSessions)
	mux.HandleFunc("/chat/sessions/", api.handleSessionByID)
	mux.HandleFunc("/chat/messages", api.handleMessages)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeSessionAPI) handleSessions(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Title string `json:"title"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		a.seq++
		id := "s-" + time.Now().UTC().Format("150405") + "-" + string(rune('a'+a.seq))
		session := map[string]any{
			"id":         id,
			"title":      req.Title,
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
			"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
		}
		a.sessions[id] = session
		json.NewEncoder(w).Encode(session)
	case http.MethodGet:
		out := make([]map[string]any, 0, len(a.sessions))
		for _, s := range a.sessions {
			out = append(out, s)
		}
		json.NewEncoder(w).Encode(out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *fakeSessionAPI) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := r.URL.Path[len("/chat/sessions/"):]
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := a.sessions[id]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	delete(a.sessions, id)
	delete(a.messages, id)
	w.WriteHeader(http.StatusOK)
}

func (a *fakeSessionAPI) handleMessages(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch r.Method {
	case http.MethodPost:
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		id, _ := req["session_id"].(string)
		a.messages[id] = append(a.messages[id], req)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		id := r.URL.Query().Get("session_id")
		out := a.messages[id]
		if out == nil {
			out = []map[string]any{}
		}
		json.NewEncoder(w).Encode(out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestRemoteSessionRoundTrip(t *testing.T) {
	_, srv := newFakeSessionAPI(t)
	remote := NewRemote(srv.URL, 5*time.Second)
	ctx := context.Background()

	if !remote.Available(ctx) {
		t.Fatalf("expected backend to be available")
	}

	session, err := remote.CreateSession(ctx, "테스트 대화")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.ID == "" || session.Title != "테스트 대화" {
		t.Fatalf("unexpected session %+v", session)
	}

	if err := remote.SaveMessage(ctx, &models.Message{
		SessionID: session.ID,
		Role:      models.RoleUser,
		Content:   "질문입니다",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("save message: %v", err)
	}

	msgs, err := remote.GetMessages(ctx, session.ID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "질문입니다" || msgs[0].Role != models.RoleUser {
		t.Fatalf("unexpected messages %v", msgs)
	}

	got, err := remote.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.ID != session.ID {
		t.Fatalf("expected session %q, got %q", session.ID, got.ID)
	}

	if err := remote.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if err := remote.DeleteSession(ctx, session.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRemoteUnavailableWhenDown(t *testing.T) {
	_, srv := newFakeSessionAPI(t)
	srv.Close()
	remote := NewRemote(srv.URL, time.Second)
	if remote.Available(context.Background()) {
		t.Fatalf("closed server must not be available")
	}
	if _, err := remote.GetAllSessions(context.Background()); err == nil {
		t.Fatalf("expected error from downed backend")
	}
}
