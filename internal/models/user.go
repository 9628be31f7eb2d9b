package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultProfilePic is the sentinel filename for users who never uploaded a
// picture. It is never deleted on replacement.
const DefaultProfilePic = "default.jpg"

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash *string   `json:"-"`
	FullName     string    `json:"full_name"`
	Bio          string    `json:"bio"`
	ProfilePic   string    `json:"profile_pic"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash *string
	FullName     string
}

// UserSummary is the public slice of a user embedded in friend lists,
// requests, comments and search results.
type UserSummary struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	ProfilePic string    `json:"profile_pic"`
}

type UserSearchResult struct {
	UserSummary
	FriendshipStatus FriendshipState `json:"friendship_status"`
}
