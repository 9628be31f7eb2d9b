package models

import (
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	Image     *string   `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PostWithAuthor is a feed/profile row: the post plus author fields and
// engagement counts computed fresh at query time.
type PostWithAuthor struct {
	Post
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	ProfilePic    string `json:"profile_pic"`
	LikesCount    int    `json:"likes_count"`
	CommentsCount int    `json:"comments_count"`
	UserLiked     bool   `json:"user_liked"`
	TimeAgo       string `json:"time_ago"`
}

type Like struct {
	ID        uuid.UUID `json:"id"`
	PostID    uuid.UUID `json:"post_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID        uuid.UUID `json:"id"`
	PostID    uuid.UUID `json:"post_id"`
	UserID    uuid.UUID `json:"user_id"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type CommentView struct {
	Comment
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	ProfilePic string `json:"profile_pic"`
	TimeAgo    string `json:"time_ago"`
	CanDelete  bool   `json:"can_delete"`
}

type Share struct {
	ID        uuid.UUID `json:"id"`
	PostID    uuid.UUID `json:"post_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
