// Package chat owns the conversation lifecycle: validated user input,
// persistence, the answer call and the resulting message log.
package chat

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ecochat/internal/answer"
	"ecochat/internal/extract"
	"ecochat/internal/models"
	"ecochat/internal/store"
)

// State is the controller's explicit conversation state.
type State int

const (
	StateIdle State = iota
	StateAwaitingReply
)

const (
	minSubmitRunes = 2
	maxSubmitRunes = 2000
	titleRunes     = 13
)

var (
	ErrTextTooShort = errors.New("message is empty or too short")
	ErrTextTooLong  = errors.New("message exceeds the maximum length")
	ErrReplyPending = errors.New("a reply is already being generated")
)

var newlineRunRe = regexp.MustCompile(`\n{3,}`)

// AnswerProvider generates an assistant reply for the latest user text.
// Implementations may attach structured sources; when they do not, the
// controller extracts them from the reply text itself.
type AnswerProvider interface {
	Ask(ctx context.Context, content string) (string, []models.Source, error)
}

// Controller drives one session's conversation. All mutation goes through
// Submit; concurrent submissions are rejected, not interleaved.
type Controller struct {
	store   *store.Client
	answers AnswerProvider
	logger  *zap.Logger

	mu      sync.Mutex
	session *models.Session
	log     []*models.Message
	state   State
	fresh   bool // no accepted message yet; title still a placeholder

	// onRebind notifies the owner when the placeholder session is
	// replaced and the id changes.
	onRebind func(oldID, newID string)
}

func newController(session *models.Session, history []*models.Message, st *store.Client, answers AnswerProvider, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:   st,
		answers: answers,
		logger:  logger,
		session: session,
		log:     history,
		state:   StateIdle,
		fresh:   len(history) == 0 && session.MessageCount == 0,
	}
}

// State reports the current conversation state; the renderer shows the
// typing indicator while a reply is awaited.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the owning session.
func (c *Controller) Session() models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.session
}

// Messages returns the in-memory message log in order.
func (c *Controller) Messages() []*models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.Message, len(c.log))
	copy(out, c.log)
	return out
}

// normalize trims the input and collapses runs of three or more newlines
// before length validation.
func normalize(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = newlineRunRe.ReplaceAllString(text, "\n\n")
	runes := []rune(text)
	if len(runes) < minSubmitRunes {
		return "", ErrTextTooShort
	}
	if len(runes) > maxSubmitRunes {
		return "", ErrTextTooLong
	}
	return text, nil
}

// Submit runs one full turn: validate, persist the user message, call the
// answer backend and persist its reply. It returns the assistant message.
// Validation failures make no network call and leave the log untouched.
func (c *Controller) Submit(ctx context.Context, text string) (*models.Message, error) {
	normalized, err := normalize(text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.state == StateAwaitingReply {
		c.mu.Unlock()
		return nil, ErrReplyPending
	}
	c.state = StateAwaitingReply
	wasFresh := c.fresh
	c.fresh = false
	c.mu.Unlock()

	// Retitle before the first message exists so every message is born
	// under its final session id and never rewritten.
	if wasFresh {
		c.adoptTitle(ctx, normalized)
	}

	c.mu.Lock()
	userMsg := &models.Message{
		SessionID: c.session.ID,
		Role:      models.RoleUser,
		Content:   normalized,
		CreatedAt: time.Now().UTC(),
	}
	c.log = append(c.log, userMsg)
	c.mu.Unlock()

	c.store.SaveMessage(ctx, userMsg)

	reply, sources, askErr := c.answers.Ask(ctx, normalized)
	body := reply
	if askErr != nil {
		c.logger.Warn("answer call failed", zap.String("session_id", userMsg.SessionID), zap.Error(askErr))
		body = answer.FallbackMessage(askErr)
		sources = nil
	} else if len(sources) == 0 {
		body, sources = extract.Extract(reply)
	}

	assistantMsg := &models.Message{
		SessionID: userMsg.SessionID,
		Role:      models.RoleAssistant,
		Content:   body,
		Sources:   sources,
		CreatedAt: time.Now().UTC(),
	}

	c.mu.Lock()
	c.log = append(c.log, assistantMsg)
	c.state = StateIdle
	c.mu.Unlock()

	c.store.SaveMessage(ctx, assistantMsg)
	return assistantMsg, nil
}

// adoptTitle replaces the fresh placeholder session with one titled after
// the first accepted message, discarding the placeholder. It runs before
// that message is appended, so the log holds nothing to carry over. On
// failure the placeholder simply keeps serving.
func (c *Controller) adoptTitle(ctx context.Context, text string) {
	title := deriveTitle(text)

	titled, err := c.store.CreateSession(ctx, title)
	if err != nil {
		c.logger.Warn("retitle session failed", zap.Error(err))
		return
	}

	c.mu.Lock()
	old := c.session
	c.session = titled
	c.mu.Unlock()

	c.store.DeleteSession(ctx, old.ID)
	if c.onRebind != nil {
		c.onRebind(old.ID, titled.ID)
	}
}

// deriveTitle truncates the first message to the session title.
func deriveTitle(text string) string {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	runes := []rune(strings.TrimSpace(line))
	if len(runes) <= titleRunes {
		return string(runes)
	}
	return string(runes[:titleRunes]) + "…"
}
