package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/socialspace/socialspace/internal/logging"
	"github.com/socialspace/socialspace/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationSink is what the domain services see: fire an in-app
// notification for a user, best effort. Implementations must not block the
// caller's request on email delivery.
type NotificationSink interface {
	Notify(ctx context.Context, userID uuid.UUID, actorID *uuid.UUID, typ models.NotificationType, postID *uuid.UUID)
}

type NotificationService struct {
	db     DBConn
	email  EmailProvider
	logger *logging.Logger
}

func NewNotificationService(db DBConn, email EmailProvider) *NotificationService {
	return &NotificationService{db: db, email: email, logger: logging.Default}
}

// Notify records an in-app notification and, for friend activity, sends an
// email in the background. Failures are logged, never surfaced: the action
// that triggered the notification has already succeeded.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, actorID *uuid.UUID, typ models.NotificationType, postID *uuid.UUID) {
	_, err := s.db.Exec(ctx,
		`INSERT INTO notifications (user_id, actor_id, type, post_id)
		 VALUES ($1, $2, $3, $4)`,
		userID, actorID, typ, postID,
	)
	if err != nil {
		s.logger.Error("failed to record notification", map[string]interface{}{
			"user_id": userID.String(),
			"type":    string(typ),
			"error":   err.Error(),
		})
		return
	}

	if s.email != nil && (typ == models.NotificationTypeFriendRequest || typ == models.NotificationTypeFriendAccept) {
		go s.sendEmail(userID, typ)
	}
}

func (s *NotificationService) sendEmail(userID uuid.UUID, typ models.NotificationType) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var email, fullName string
	err := s.db.QueryRow(ctx, "SELECT email, full_name FROM users WHERE id = $1", userID).Scan(&email, &fullName)
	if err != nil {
		s.logger.Error("failed to look up notification recipient", map[string]interface{}{
			"user_id": userID.String(),
			"error":   err.Error(),
		})
		return
	}

	var subject, body string
	switch typ {
	case models.NotificationTypeFriendRequest:
		subject = "You have a new friend request"
		body = fmt.Sprintf("Hi %s,\n\nSomeone sent you a friend request. Log in to respond.\n", fullName)
	case models.NotificationTypeFriendAccept:
		subject = "Your friend request was accepted"
		body = fmt.Sprintf("Hi %s,\n\nYour friend request was accepted. Say hello!\n", fullName)
	default:
		return
	}

	if err := s.email.Send(ctx, email, subject, body); err != nil {
		s.logger.Error("failed to send notification email", map[string]interface{}{
			"user_id": userID.String(),
			"type":    string(typ),
			"error":   err.Error(),
		})
	}
}

// List returns the user's notifications newest first, joined with the
// acting user when one exists.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit int) ([]models.NotificationView, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT n.id, n.user_id, n.actor_id, n.type, n.post_id, n.is_read, n.created_at,
			u.username, u.full_name, u.profile_pic
		 FROM notifications n
		 LEFT JOIN users u ON n.actor_id = u.id
		 WHERE n.user_id = $1
		 ORDER BY n.created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	notifications := []models.NotificationView{}
	for rows.Next() {
		var n models.NotificationView
		if err := rows.Scan(&n.ID, &n.UserID, &n.ActorID, &n.Type, &n.PostID, &n.IsRead, &n.CreatedAt,
			&n.ActorUsername, &n.ActorFullName, &n.ActorProfilePic); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		n.TimeAgo = models.TimeAgo(n.CreatedAt, now)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return notifications, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE",
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2",
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE",
		userID,
	)
	if err != nil {
		return fmt.Errorf("marking notifications read: %w", err)
	}
	return nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		"DELETE FROM notifications WHERE id = $1 AND user_id = $2",
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// CleanupOld removes read notifications older than the cutoff and returns
// how many were deleted.
func (s *NotificationService) CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx,
		"DELETE FROM notifications WHERE is_read = TRUE AND created_at < $1",
		time.Now().Add(-olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning up notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

type NotificationServiceInterface interface {
	List(ctx context.Context, userID uuid.UUID, limit int) ([]models.NotificationView, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, userID, notificationID uuid.UUID) error
}
