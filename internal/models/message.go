package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMessageTheme is returned when a conversation has no saved theme.
const DefaultMessageTheme = "default"

type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessageView annotates a message for the requesting participant.
type MessageView struct {
	Message
	Username string `json:"username"`
	FullName string `json:"full_name"`
	IsMine   bool   `json:"is_mine"`
	TimeAgo  string `json:"time_ago"`
}

// MessageTheme is a per-(viewer, counterpart) preference. Each side of a
// conversation picks independently.
type MessageTheme struct {
	UserID   uuid.UUID `json:"user_id"`
	FriendID uuid.UUID `json:"friend_id"`
	Theme    string    `json:"theme"`
}
