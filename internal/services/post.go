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
	ErrEmptyPost    = errors.New("post content cannot be empty")
	ErrEmptyComment = errors.New("comment cannot be empty")
	ErrPostNotFound = errors.New("post not found")
	ErrUnauthorized = errors.New("unauthorized")
)

type PostService struct {
	db            DB
	uploads       *UploadStore
	notifications NotificationSink
}

func NewPostService(db DB, uploads *UploadStore) *PostService {
	return &PostService{db: db, uploads: uploads}
}

func (s *PostService) SetNotificationService(sink NotificationSink) {
	s.notifications = sink
}

// Create stores a post. Image is a stored filename already placed by the
// upload store, or nil for a text-only post.
func (s *PostService) Create(ctx context.Context, userID uuid.UUID, content string, image *string) (*models.Post, error) {
	if content == "" && image == nil {
		return nil, ErrEmptyPost
	}

	post := &models.Post{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO posts (user_id, content, image)
		 VALUES ($1, $2, $3)
		 RETURNING id, user_id, content, image, created_at`,
		userID, content, image,
	).Scan(&post.ID, &post.UserID, &post.Content, &post.Image, &post.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	return post, nil
}

// Delete removes a post owned by the caller along with its stored image
// file. A missing row and a row owned by someone else both answer
// unauthorized, so callers cannot probe for existence.
func (s *PostService) Delete(ctx context.Context, userID, postID uuid.UUID) error {
	var ownerID uuid.UUID
	var image *string
	err := s.db.QueryRow(ctx, "SELECT user_id, image FROM posts WHERE id = $1", postID).Scan(&ownerID, &image)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("getting post: %w", err)
	}
	if ownerID != userID {
		return ErrUnauthorized
	}

	if _, err := s.db.Exec(ctx, "DELETE FROM posts WHERE id = $1", postID); err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}

	if image != nil && s.uploads != nil {
		if err := s.uploads.Remove(UploadKindPost, *image); err != nil {
			return fmt.Errorf("removing post image: %w", err)
		}
	}

	return nil
}

// ToggleLike flips the caller's like on a post inside one transaction and
// returns the new state plus a freshly computed count.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uuid.UUID) (liked bool, count int, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("beginning like toggle: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var likeID uuid.UUID
	scanErr := tx.QueryRow(ctx,
		"SELECT id FROM likes WHERE post_id = $1 AND user_id = $2",
		postID, userID,
	).Scan(&likeID)

	switch {
	case scanErr == nil:
		if _, err = tx.Exec(ctx, "DELETE FROM likes WHERE id = $1", likeID); err != nil {
			return false, 0, fmt.Errorf("removing like: %w", err)
		}
		liked = false
	case errors.Is(scanErr, pgx.ErrNoRows):
		if _, err = tx.Exec(ctx, "INSERT INTO likes (post_id, user_id) VALUES ($1, $2)", postID, userID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				err = ErrPostNotFound
				return false, 0, err
			}
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				// A concurrent toggle inserted the like first. The failed
				// statement aborted the transaction, so count outside it.
				// The winner already notified the post owner.
				_ = tx.Rollback(ctx)
				err = nil
				if err = s.db.QueryRow(ctx, "SELECT COUNT(*) FROM likes WHERE post_id = $1", postID).Scan(&count); err != nil {
					return false, 0, fmt.Errorf("counting likes: %w", err)
				}
				return true, count, nil
			}
			return false, 0, fmt.Errorf("inserting like: %w", err)
		}
		liked = true
	default:
		err = fmt.Errorf("checking existing like: %w", scanErr)
		return false, 0, err
	}

	if err = tx.QueryRow(ctx, "SELECT COUNT(*) FROM likes WHERE post_id = $1", postID).Scan(&count); err != nil {
		return false, 0, fmt.Errorf("counting likes: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return false, 0, fmt.Errorf("committing like toggle: %w", err)
	}

	if liked {
		s.notifyPostOwner(ctx, userID, postID, models.NotificationTypeLike)
	}

	return liked, count, nil
}

func (s *PostService) AddComment(ctx context.Context, userID, postID uuid.UUID, text string) (*models.Comment, error) {
	if text == "" {
		return nil, ErrEmptyComment
	}

	comment := &models.Comment{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO comments (post_id, user_id, comment)
		 VALUES ($1, $2, $3)
		 RETURNING id, post_id, user_id, comment, created_at`,
		postID, userID, text,
	).Scan(&comment.ID, &comment.PostID, &comment.UserID, &comment.Comment, &comment.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("adding comment: %w", err)
	}

	s.notifyPostOwner(ctx, userID, postID, models.NotificationTypeComment)

	return comment, nil
}

// Comments lists a post's comments oldest first, annotated with the author
// and whether the viewer may delete each one.
func (s *PostService) Comments(ctx context.Context, viewerID, postID uuid.UUID) ([]models.CommentView, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.post_id, c.user_id, c.comment, c.created_at,
			u.username, u.full_name, u.profile_pic
		 FROM comments c
		 JOIN users u ON c.user_id = u.id
		 WHERE c.post_id = $1
		 ORDER BY c.created_at ASC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	comments := []models.CommentView{}
	for rows.Next() {
		var c models.CommentView
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Comment.Comment, &c.CreatedAt, &c.Username, &c.FullName, &c.ProfilePic); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		c.TimeAgo = models.TimeAgo(c.CreatedAt, now)
		c.CanDelete = c.UserID == viewerID
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return comments, nil
}

// DeleteComment enforces ownership the same way Delete does: missing rows
// and foreign rows are both unauthorized.
func (s *PostService) DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error {
	var ownerID uuid.UUID
	err := s.db.QueryRow(ctx, "SELECT user_id FROM comments WHERE id = $1", commentID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("getting comment: %w", err)
	}
	if ownerID != userID {
		return ErrUnauthorized
	}

	if _, err := s.db.Exec(ctx, "DELETE FROM comments WHERE id = $1", commentID); err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	return nil
}

// Share appends a share record. Duplicate shares by the same user are
// allowed deliberately.
func (s *PostService) Share(ctx context.Context, userID, postID uuid.UUID) error {
	_, err := s.db.Exec(ctx, "INSERT INTO shares (post_id, user_id) VALUES ($1, $2)", postID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrPostNotFound
		}
		return fmt.Errorf("sharing post: %w", err)
	}
	return nil
}

// Feed returns every post newest first with author fields, engagement
// counts, and whether the viewer liked each post. Counts are computed at
// query time, never cached.
func (s *PostService) Feed(ctx context.Context, viewerID uuid.UUID) ([]models.PostWithAuthor, error) {
	return s.listPosts(ctx, viewerID, uuid.Nil)
}

// UserPosts returns one user's posts in the same shape as Feed.
func (s *PostService) UserPosts(ctx context.Context, viewerID, authorID uuid.UUID) ([]models.PostWithAuthor, error) {
	return s.listPosts(ctx, viewerID, authorID)
}

func (s *PostService) listPosts(ctx context.Context, viewerID, authorID uuid.UUID) ([]models.PostWithAuthor, error) {
	query := `SELECT p.id, p.user_id, p.content, p.image, p.created_at,
			u.username, u.full_name, u.profile_pic,
			(SELECT COUNT(*) FROM likes WHERE post_id = p.id),
			(SELECT COUNT(*) FROM comments WHERE post_id = p.id),
			EXISTS(SELECT 1 FROM likes WHERE post_id = p.id AND user_id = $1)
		 FROM posts p
		 JOIN users u ON p.user_id = u.id`
	args := []any{viewerID}
	if authorID != uuid.Nil {
		query += " WHERE p.user_id = $2"
		args = append(args, authorID)
	}
	query += " ORDER BY p.created_at DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	posts := []models.PostWithAuthor{}
	for rows.Next() {
		var p models.PostWithAuthor
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.Image, &p.CreatedAt,
			&p.Username, &p.FullName, &p.ProfilePic,
			&p.LikesCount, &p.CommentsCount, &p.UserLiked); err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		p.TimeAgo = models.TimeAgo(p.CreatedAt, now)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

func (s *PostService) notifyPostOwner(ctx context.Context, actorID, postID uuid.UUID, typ models.NotificationType) {
	if s.notifications == nil {
		return
	}
	var ownerID uuid.UUID
	if err := s.db.QueryRow(ctx, "SELECT user_id FROM posts WHERE id = $1", postID).Scan(&ownerID); err != nil {
		return
	}
	if ownerID == actorID {
		return
	}
	s.notifications.Notify(ctx, ownerID, &actorID, typ, &postID)
}

type PostServiceInterface interface {
	Create(ctx context.Context, userID uuid.UUID, content string, image *string) (*models.Post, error)
	Delete(ctx context.Context, userID, postID uuid.UUID) error
	ToggleLike(ctx context.Context, userID, postID uuid.UUID) (liked bool, count int, err error)
	AddComment(ctx context.Context, userID, postID uuid.UUID, text string) (*models.Comment, error)
	Comments(ctx context.Context, viewerID, postID uuid.UUID) ([]models.CommentView, error)
	DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error
	Share(ctx context.Context, userID, postID uuid.UUID) error
	Feed(ctx context.Context, viewerID uuid.UUID) ([]models.PostWithAuthor, error)
	UserPosts(ctx context.Context, viewerID, authorID uuid.UUID) ([]models.PostWithAuthor, error)
}
