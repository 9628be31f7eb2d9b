package models

import (
	"time"

	"github.com/google/uuid"
)

type FriendshipStatus string

const (
	FriendshipStatusPending  FriendshipStatus = "pending"
	FriendshipStatusAccepted FriendshipStatus = "accepted"
)

// FriendshipState classifies a viewed user relative to the viewer. Unlike
// FriendshipStatus it is directional: a pending row maps to pending_sent or
// pending_received depending on which side the viewer is on.
type FriendshipState string

const (
	FriendshipStateFriend          FriendshipState = "friend"
	FriendshipStatePendingSent     FriendshipState = "pending_sent"
	FriendshipStatePendingReceived FriendshipState = "pending_received"
	FriendshipStateNone            FriendshipState = "none"
)

// Friendship is a directional row: UserID is the requester, FriendID the
// recipient. Undirected lookups must match both orientations.
type Friendship struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	FriendID  uuid.UUID        `json:"friend_id"`
	Status    FriendshipStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// FriendRequest is an incoming pending row joined with the requester.
type FriendRequest struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	ProfilePic string    `json:"profile_pic"`
}
