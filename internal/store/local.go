package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ecochat/internal/models"
)

// Local persists sessions in a relational database (sqlite3 or mysql).
type Local struct {
	db *sql.DB
}

// NewLocal wraps an opened, migrated database.
func NewLocal(db *sql.DB) *Local {
	return &Local{db: db}
}

// Available pings the database with a short budget.
func (l *Local) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return l.db.PingContext(ctx) == nil
}

func (l *Local) CreateSession(ctx context.Context, title string) (*models.Session, error) {
	now := time.Now().UTC()
	if title == "" {
		title = "대화 " + now.Format("2006-01-02 15:04")
	}
	session := &models.Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, created_at, updated_at, message_count, first_message) VALUES (?, ?, ?, ?, 0, '')`,
		session.ID, session.Title, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (l *Local) GetAllSessions(ctx context.Context) ([]*models.Session, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at, message_count, first_message FROM sessions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		s := new(models.Session)
		if err := rows.Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount, &s.FirstMessage); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (l *Local) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s := new(models.Session)
	err := l.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at, message_count, first_message FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount, &s.FirstMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (l *Local) UpdateSessionTitle(ctx context.Context, id, title string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update session title: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (l *Local) DeleteSession(ctx context.Context, id string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session rows affected: %w", err)
	}
	if affected == 0 {
		tx.Rollback()
		return ErrNotFound
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session: %w", err)
	}
	return nil
}

// SaveMessage stores the message and maintains the owning session's
// updated_at, message_count and first-message preview.
func (l *Local) SaveMessage(ctx context.Context, msg *models.Message) error {
	sources, err := json.Marshal(msg.Sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}
	now := msg.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if _, err := l.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, sources, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.SessionID, msg.Role, msg.Content, string(sources), now,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if _, err := l.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ?, message_count = message_count + 1 WHERE id = ?`,
		time.Now().UTC(), msg.SessionID,
	); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if msg.Role == models.RoleUser {
		if _, err := l.db.ExecContext(ctx,
			`UPDATE sessions SET first_message = ? WHERE id = ? AND first_message = ''`,
			previewOf(msg.Content), msg.SessionID,
		); err != nil {
			return fmt.Errorf("set first message: %w", err)
		}
	}
	return nil
}

func (l *Local) GetMessages(ctx context.Context, id string) ([]*models.Message, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT session_id, role, content, sources, created_at FROM messages WHERE session_id = ? ORDER BY created_at ASC, id ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		m := new(models.Message)
		var sources string
		if err := rows.Scan(&m.SessionID, &m.Role, &m.Content, &sources, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if sources != "" && sources != "null" {
			if err := json.Unmarshal([]byte(sources), &m.Sources); err != nil {
				return nil, fmt.Errorf("decode sources: %w", err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
