package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/socialspace/socialspace/internal/models"
)

var (
	ErrEmptyMessage      = errors.New("message cannot be empty")
	ErrMessageNotFound   = errors.New("message not found")
	ErrRecipientNotFound = errors.New("recipient not found")
)

type MessageService struct {
	db            DB
	notifications NotificationSink
}

func NewMessageService(db DB) *MessageService {
	return &MessageService{db: db}
}

func (s *MessageService) SetNotificationService(sink NotificationSink) {
	s.notifications = sink
}

func (s *MessageService) Send(ctx context.Context, senderID, receiverID uuid.UUID, text string) (*models.Message, error) {
	if text == "" {
		return nil, ErrEmptyMessage
	}

	msg := &models.Message{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO messages (sender_id, receiver_id, message)
		 VALUES ($1, $2, $3)
		 RETURNING id, sender_id, receiver_id, message, is_read, created_at`,
		senderID, receiverID, text,
	).Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Message, &msg.IsRead, &msg.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("sending message: %w", err)
	}

	if s.notifications != nil {
		s.notifications.Notify(ctx, receiverID, &senderID, models.NotificationTypeMessage, nil)
	}

	return msg, nil
}

// Conversation returns the full thread between the caller and friend in
// chronological order, then marks the friend's messages as read. The rows
// returned reflect the state before the mark, so just-read messages still
// display as new once.
func (s *MessageService) Conversation(ctx context.Context, userID, friendID uuid.UUID) ([]models.MessageView, error) {
	rows, err := s.db.Query(ctx,
		`SELECT m.id, m.sender_id, m.receiver_id, m.message, m.is_read, m.created_at,
		        u.username, u.full_name
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE (m.sender_id = $1 AND m.receiver_id = $2)
		    OR (m.sender_id = $2 AND m.receiver_id = $1)
		 ORDER BY m.created_at ASC`,
		userID, friendID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}

	now := time.Now()
	messages := []models.MessageView{}
	for rows.Next() {
		var m models.MessageView
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Message.Message, &m.IsRead, &m.CreatedAt, &m.Username, &m.FullName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.IsMine = m.SenderID == userID
		m.TimeAgo = models.TimeAgo(m.CreatedAt, now)
		messages = append(messages, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`UPDATE messages SET is_read = TRUE
		 WHERE sender_id = $1 AND receiver_id = $2 AND is_read = FALSE`,
		friendID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("marking conversation read: %w", err)
	}

	return messages, nil
}

// UnreadCount counts messages addressed to the user that no conversation
// view has marked read yet.
func (s *MessageService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND is_read = FALSE",
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return count, nil
}

// DeleteMessage removes one message. Only the sender may delete; receivers
// and strangers get the same unauthorized answer.
func (s *MessageService) DeleteMessage(ctx context.Context, userID, messageID uuid.UUID) error {
	var senderID uuid.UUID
	err := s.db.QueryRow(ctx, "SELECT sender_id FROM messages WHERE id = $1", messageID).Scan(&senderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("getting message: %w", err)
	}
	if senderID != userID {
		return ErrUnauthorized
	}

	if _, err := s.db.Exec(ctx, "DELETE FROM messages WHERE id = $1", messageID); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	return nil
}

// DeleteConversation removes every message between the pair in both
// directions. Deleting an empty conversation succeeds.
func (s *MessageService) DeleteConversation(ctx context.Context, userID, friendID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM messages
		 WHERE (sender_id = $1 AND receiver_id = $2)
		    OR (sender_id = $2 AND receiver_id = $1)`,
		userID, friendID,
	)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	return nil
}

// SetTheme stores the caller's theme choice for one conversation. Each
// side of a conversation keeps its own theme.
func (s *MessageService) SetTheme(ctx context.Context, userID, friendID uuid.UUID, theme string) error {
	if theme == "" {
		theme = models.DefaultMessageTheme
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO message_themes (user_id, friend_id, theme)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, friend_id)
		 DO UPDATE SET theme = EXCLUDED.theme`,
		userID, friendID, theme,
	)
	if err != nil {
		return fmt.Errorf("setting message theme: %w", err)
	}
	return nil
}

// Theme returns the caller's theme for a conversation, or the default when
// none was ever chosen.
func (s *MessageService) Theme(ctx context.Context, userID, friendID uuid.UUID) (string, error) {
	var theme string
	err := s.db.QueryRow(ctx,
		"SELECT theme FROM message_themes WHERE user_id = $1 AND friend_id = $2",
		userID, friendID,
	).Scan(&theme)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultMessageTheme, nil
	}
	if err != nil {
		return "", fmt.Errorf("getting message theme: %w", err)
	}
	return theme, nil
}

type MessageServiceInterface interface {
	Send(ctx context.Context, senderID, receiverID uuid.UUID, text string) (*models.Message, error)
	Conversation(ctx context.Context, userID, friendID uuid.UUID) ([]models.MessageView, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteMessage(ctx context.Context, userID, messageID uuid.UUID) error
	DeleteConversation(ctx context.Context, userID, friendID uuid.UUID) error
	SetTheme(ctx context.Context, userID, friendID uuid.UUID, theme string) error
	Theme(ctx context.Context, userID, friendID uuid.UUID) (string, error)
}
