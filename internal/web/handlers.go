// Package web exposes the chat UI and its JSON API over gin.
package web

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ecochat/internal/chat"
	"ecochat/internal/models"
	"ecochat/internal/nav"
	"ecochat/internal/store"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Handler wires HTTP routes to the conversation manager and session store.
type Handler struct {
	manager *chat.Manager
	store   *store.Client
	logger  *zap.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(manager *chat.Manager, st *store.Client, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{manager: manager, store: st, logger: logger}
}

// RegisterRoutes attaches all HTTP routes and templates to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.tmpl")))

	router.GET("/", h.showPage)
	router.POST("/chat", h.submitForm)

	api := router.Group("/api")
	api.GET("/sessions", h.listSessions)
	api.POST("/sessions", h.createSession)
	api.DELETE("/sessions/:id", h.deleteSession)
	api.GET("/sessions/:id/messages", h.getSessionMessages)
	api.POST("/chat", h.submitJSON)
}

type pageData struct {
	View     models.View
	Sidebar  []models.ViewItem
	Sessions []*models.Session
	Current  models.Session
	Messages []bubble
	Pending  bool
	Notice   string
	Warn     string
	Query    string
}

// showPage renders the full app for the requested tab. The ?tab= value
// is validated against the known views; anything else keeps home.
func (h *Handler) showPage(c *gin.Context) {
	view := models.ViewHome
	if v, ok := nav.Resolve(c.Query("tab"), models.KnownViews()); ok {
		view = v
	}

	ctx := c.Request.Context()
	if id := c.Query("session"); id != "" {
		if _, err := h.manager.Select(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			h.logger.Warn("select session failed", zap.String("id", id), zap.Error(err))
		}
	}

	ctrl, err := h.manager.Current(ctx)
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to restore conversation state")
		return
	}

	data := pageData{
		View:     view,
		Sidebar:  models.SidebarItems,
		Current:  ctrl.Session(),
		Messages: toBubbles(ctrl.Messages()),
		Pending:  ctrl.State() == chat.StateAwaitingReply,
		Notice:   h.store.Notice(),
		Warn:     c.Query("warn"),
		Query:    c.Query("q"),
	}

	if view == models.ViewHistory {
		if data.Query != "" {
			data.Sessions, err = h.store.SearchSessions(ctx, data.Query)
		} else {
			data.Sessions, err = h.manager.Sessions(ctx)
		}
		if err != nil {
			h.logger.Warn("list sessions failed", zap.Error(err))
		}
	}

	c.HTML(http.StatusOK, "chat.tmpl", data)
}

// submitForm handles the page's message form and redirects back so a
// refresh never re-posts the question.
func (h *Handler) submitForm(c *gin.Context) {
	ctx := c.Request.Context()

	ctrl, err := h.currentController(c, c.PostForm("session_id"))
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/?warn="+url.QueryEscape("대화를 찾을 수 없습니다."))
		return
	}

	if _, err := ctrl.Submit(ctx, c.PostForm("message")); err != nil {
		c.Redirect(http.StatusSeeOther, "/?warn="+url.QueryEscape(warnFor(err)))
		return
	}
	c.Redirect(http.StatusSeeOther, "/?session="+url.QueryEscape(ctrl.Session().ID))
}

func (h *Handler) currentController(c *gin.Context, sessionID string) (*chat.Controller, error) {
	ctx := c.Request.Context()
	if sessionID != "" {
		return h.manager.Select(ctx, sessionID)
	}
	return h.manager.Current(ctx)
}

// warnFor maps validation errors to the banner text.
func warnFor(err error) string {
	switch {
	case errors.Is(err, chat.ErrTextTooShort):
		return "질문이 너무 짧습니다. 2자 이상 입력해 주세요."
	case errors.Is(err, chat.ErrTextTooLong):
		return "질문이 너무 깁니다. 2000자 이내로 줄여 주세요."
	case errors.Is(err, chat.ErrReplyPending):
		return "이전 질문의 답변을 기다리는 중입니다."
	default:
		return "질문을 처리하지 못했습니다."
	}
}

func (h *Handler) listSessions(c *gin.Context) {
	var (
		sessions []*models.Session
		err      error
	)
	if q := c.Query("q"); q != "" {
		sessions, err = h.store.SearchSessions(c.Request.Context(), q)
	} else {
		sessions, err = h.store.GetAllSessions(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = make([]*models.Session, 0)
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) createSession(c *gin.Context) {
	ctrl, err := h.manager.NewSession(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": ctrl.Session()})
}

func (h *Handler) deleteSession(c *gin.Context) {
	id := c.Param("id")
	deleted, err := h.manager.Delete(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deleted":    deleted,
		"current_id": h.manager.CurrentID(),
	})
}

func (h *Handler) getSessionMessages(c *gin.Context) {
	id := c.Param("id")
	session, err := h.store.GetSession(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	messages, err := h.store.GetMessages(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = make([]*models.Message, 0)
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "messages": messages})
}

// User input interface
type inputRequest struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

func (h *Handler) submitJSON(c *gin.Context) {
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctrl, err := h.currentController(c, req.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	reply, err := ctrl.Submit(c.Request.Context(), req.Content)
	switch {
	case errors.Is(err, chat.ErrReplyPending):
		c.JSON(http.StatusConflict, gin.H{"error": warnFor(err)})
		return
	case errors.Is(err, chat.ErrTextTooShort), errors.Is(err, chat.ErrTextTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": warnFor(err)})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": ctrl.Session(),
		"reply":   reply,
		"notice":  h.store.Notice(),
	})
}
