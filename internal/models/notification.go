package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeFriendRequest NotificationType = "friend_request"
	NotificationTypeFriendAccept  NotificationType = "friend_accept"
	NotificationTypeLike          NotificationType = "like"
	NotificationTypeComment       NotificationType = "comment"
	NotificationTypeMessage       NotificationType = "message"
)

type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	ActorID   *uuid.UUID       `json:"actor_id,omitempty"`
	Type      NotificationType `json:"type"`
	PostID    *uuid.UUID       `json:"post_id,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

type NotificationView struct {
	Notification
	ActorUsername   *string `json:"actor_username,omitempty"`
	ActorFullName   *string `json:"actor_full_name,omitempty"`
	ActorProfilePic *string `json:"actor_profile_pic,omitempty"`
	TimeAgo         string  `json:"time_ago"`
}
