package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"ecochat/internal/chat"
	"ecochat/internal/models"
	"ecochat/internal/store"
)

type stubAnswers struct {
	reply   string
	sources []models.Source
	err     error
}

func (s *stubAnswers) Ask(ctx context.Context, content string) (string, []models.Source, error) {
	return s.reply, s.sources, s.err
}

func newTestRouter(t *testing.T, answers chat.AnswerProvider) (*gin.Engine, *chat.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewClient(nil, nil)
	manager := chat.NewManager(st, answers, nil)
	router := gin.New()
	NewHandler(manager, st, nil).RegisterRoutes(router)
	return router, manager
}

func doRequest(t *testing.T, router *gin.Engine, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body := ""
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = string(raw)
	}
	return doRequest(t, router, method, target, "application/json", body)
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, want, w.Body.String())
	}
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v; body: %s", err, w.Body.String())
	}
	return out
}

func TestShowPageRendersWelcome(t *testing.T) {
	router, _ := newTestRouter(t, &stubAnswers{reply: "답변"})

	w := doRequest(t, router, http.MethodGet, "/", "", "")
	assertStatus(t, w, http.StatusOK)

	body := w.Body.String()
	for _, want := range []string{"FACT", "환경, 기후변화, 지속가능성", `action="/chat"`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestShowPageTabResolution(t *testing.T) {
	router, _ := newTestRouter(t, &stubAnswers{reply: "답변"})

	w := doRequest(t, router, http.MethodGet, "/?tab=history", "", "")
	assertStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "이전 대화 기록") {
		t.Error("history tab did not render the history view")
	}

	w = doRequest(t, router, http.MethodGet, "/?tab=settings", "", "")
	assertStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "환경, 기후변화, 지속가능성") {
		t.Error("unknown tab should fall back to home")
	}
}

func TestSubmitFormRedirectsAndRenders(t *testing.T) {
	router, manager := newTestRouter(t, &stubAnswers{reply: "지구 평균 기온은 상승 추세입니다."})

	form := url.Values{"message": {"지구 온난화 현황을 알려줘"}}
	w := doRequest(t, router, http.MethodPost, "/chat", "application/x-www-form-urlencoded", form.Encode())
	assertStatus(t, w, http.StatusSeeOther)

	loc := w.Header().Get("Location")
	if !strings.HasPrefix(loc, "/?session=") {
		t.Fatalf("redirect location = %q, want /?session=...", loc)
	}
	if !strings.Contains(loc, url.QueryEscape(manager.CurrentID())) {
		t.Errorf("redirect %q does not carry the current session id %q", loc, manager.CurrentID())
	}

	w = doRequest(t, router, http.MethodGet, loc, "", "")
	assertStatus(t, w, http.StatusOK)
	body := w.Body.String()
	if !strings.Contains(body, "지구 온난화 현황을 알려줘") || !strings.Contains(body, "지구 평균 기온은 상승 추세입니다.") {
		t.Error("rendered page is missing the conversation turn")
	}
}

func TestSubmitFormRejectsShortInput(t *testing.T) {
	router, _ := newTestRouter(t, &stubAnswers{reply: "답변"})

	form := url.Values{"message": {"어"}}
	w := doRequest(t, router, http.MethodPost, "/chat", "application/x-www-form-urlencoded", form.Encode())
	assertStatus(t, w, http.StatusSeeOther)

	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	if warn := loc.Query().Get("warn"); !strings.Contains(warn, "너무 짧습니다") {
		t.Errorf("warn = %q, want a too-short notice", warn)
	}
}

func TestSessionAPILifecycle(t *testing.T) {
	router, manager := newTestRouter(t, &stubAnswers{reply: "답변"})

	w := doJSONRequest(t, router, http.MethodPost, "/api/sessions", nil)
	assertStatus(t, w, http.StatusCreated)
	created := decodeJSON(t, w)["session"].(map[string]any)
	id := created["id"].(string)
	if id == "" {
		t.Fatal("created session has no id")
	}

	w = doJSONRequest(t, router, http.MethodGet, "/api/sessions", nil)
	assertStatus(t, w, http.StatusOK)
	sessions := decodeJSON(t, w)["sessions"].([]any)
	if len(sessions) == 0 {
		t.Fatal("session list is empty after create")
	}

	w = doJSONRequest(t, router, http.MethodDelete, "/api/sessions/"+id, nil)
	assertStatus(t, w, http.StatusOK)
	resp := decodeJSON(t, w)
	if resp["deleted"] != true {
		t.Error("delete reported false")
	}
	if current := resp["current_id"].(string); current == "" || current == id {
		t.Errorf("current_id = %q, want a replacement session", current)
	}
	if manager.CurrentID() == id {
		t.Error("deleted session is still current")
	}
}

func TestSubmitJSON(t *testing.T) {
	router, _ := newTestRouter(t, &stubAnswers{reply: "재생에너지 비중은 꾸준히 늘고 있습니다."})

	w := doJSONRequest(t, router, http.MethodPost, "/api/chat", inputRequest{Content: "재생에너지 현황은?"})
	assertStatus(t, w, http.StatusOK)

	resp := decodeJSON(t, w)
	reply := resp["reply"].(map[string]any)
	if reply["content"] != "재생에너지 비중은 꾸준히 늘고 있습니다." {
		t.Errorf("reply content = %v", reply["content"])
	}
	session := resp["session"].(map[string]any)
	if !strings.HasPrefix(session["title"].(string), "재생에너지 현황은?") {
		t.Errorf("session title = %v, want first-message title", session["title"])
	}
}

func TestSubmitJSONValidation(t *testing.T) {
	router, _ := newTestRouter(t, &stubAnswers{reply: "답변"})

	w := doJSONRequest(t, router, http.MethodPost, "/api/chat", inputRequest{Content: "어"})
	assertStatus(t, w, http.StatusBadRequest)

	w = doJSONRequest(t, router, http.MethodPost, "/api/chat", inputRequest{SessionID: "missing", Content: "충분히 긴 질문"})
	assertStatus(t, w, http.StatusNotFound)
}

func TestGetSessionMessages(t *testing.T) {
	router, manager := newTestRouter(t, &stubAnswers{reply: "미세먼지는 계절 요인의 영향을 받습니다."})

	w := doJSONRequest(t, router, http.MethodPost, "/api/chat", inputRequest{Content: "미세먼지 원인은?"})
	assertStatus(t, w, http.StatusOK)
	id := manager.CurrentID()

	w = doJSONRequest(t, router, http.MethodGet, "/api/sessions/"+id+"/messages", nil)
	assertStatus(t, w, http.StatusOK)
	messages := decodeJSON(t, w)["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want the user turn and the reply", len(messages))
	}

	w = doJSONRequest(t, router, http.MethodGet, "/api/sessions/missing/messages", nil)
	assertStatus(t, w, http.StatusNotFound)
}
