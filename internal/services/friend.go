package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/socialspace/socialspace/internal/models"
)

var (
	ErrSelfRequest        = errors.New("cannot send request to yourself")
	ErrRequestExists      = errors.New("request already exists")
	ErrRequestNotFound    = errors.New("friend request not found")
	ErrFriendshipNotFound = errors.New("friendship not found")
	ErrFriendUserNotFound = errors.New("target user not found")
)

// SearchPageSize caps user search results.
const SearchPageSize = 10

type FriendService struct {
	db            DB
	notifications NotificationSink
}

func NewFriendService(db DB) *FriendService {
	return &FriendService{db: db}
}

func (s *FriendService) SetNotificationService(sink NotificationSink) {
	s.notifications = sink
}

// SendRequest inserts a pending row with the caller as requester. A row in
// either direction between the pair, pending or accepted, blocks the insert;
// the unordered-pair unique index closes the remaining race window.
func (s *FriendService) SendRequest(ctx context.Context, userID, friendID uuid.UUID) error {
	if userID == friendID {
		return ErrSelfRequest
	}

	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM friendships
			WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)
		)`,
		userID, friendID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking existing friendship: %w", err)
	}
	if exists {
		return ErrRequestExists
	}

	_, err = s.db.Exec(ctx,
		"INSERT INTO friendships (user_id, friend_id, status) VALUES ($1, $2, 'pending')",
		userID, friendID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				// Concurrent request between the same pair.
				return ErrRequestExists
			case "23503":
				return ErrFriendUserNotFound
			}
		}
		return fmt.Errorf("inserting friend request: %w", err)
	}

	if s.notifications != nil {
		s.notifications.Notify(ctx, friendID, &userID, models.NotificationTypeFriendRequest, nil)
	}

	return nil
}

// AcceptRequest flips a pending row to accepted. Only the recipient may act.
func (s *FriendService) AcceptRequest(ctx context.Context, userID, requestID uuid.UUID) error {
	var requesterID uuid.UUID
	err := s.db.QueryRow(ctx,
		`UPDATE friendships SET status = 'accepted'
		 WHERE id = $1 AND friend_id = $2 AND status = 'pending'
		 RETURNING user_id`,
		requestID, userID,
	).Scan(&requesterID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRequestNotFound
	}
	if err != nil {
		return fmt.Errorf("accepting friend request: %w", err)
	}

	if s.notifications != nil {
		s.notifications.Notify(ctx, requesterID, &userID, models.NotificationTypeFriendAccept, nil)
	}

	return nil
}

// RejectRequest deletes a pending row. Only the recipient may act.
func (s *FriendService) RejectRequest(ctx context.Context, userID, requestID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		"DELETE FROM friendships WHERE id = $1 AND friend_id = $2 AND status = 'pending'",
		requestID, userID,
	)
	if err != nil {
		return fmt.Errorf("rejecting friend request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// Unfriend deletes the row regardless of which side sent the original
// request.
func (s *FriendService) Unfriend(ctx context.Context, userID, friendID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM friendships
		 WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)`,
		userID, friendID,
	)
	if err != nil {
		return fmt.Errorf("removing friend: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrFriendshipNotFound
	}
	return nil
}

// Requests lists incoming pending requests, newest first.
func (s *FriendService) Requests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT f.id, u.id, u.username, u.full_name, u.profile_pic
		 FROM friendships f
		 JOIN users u ON f.user_id = u.id
		 WHERE f.friend_id = $1 AND f.status = 'pending'
		 ORDER BY f.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing friend requests: %w", err)
	}
	defer rows.Close()

	requests := []models.FriendRequest{}
	for rows.Next() {
		var r models.FriendRequest
		if err := rows.Scan(&r.ID, &r.UserID, &r.Username, &r.FullName, &r.ProfilePic); err != nil {
			return nil, fmt.Errorf("scanning friend request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing friend requests: %w", err)
	}
	return requests, nil
}

// Friends lists accepted friends ordered by display name.
func (s *FriendService) Friends(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT u.id, u.username, u.full_name, u.profile_pic
		 FROM users u
		 JOIN friendships f ON (
			(f.user_id = $1 AND f.friend_id = u.id) OR
			(f.friend_id = $1 AND f.user_id = u.id)
		 )
		 WHERE f.status = 'accepted'
		 ORDER BY u.full_name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	defer rows.Close()

	friends := []models.UserSummary{}
	for rows.Next() {
		var f models.UserSummary
		if err := rows.Scan(&f.ID, &f.Username, &f.FullName, &f.ProfilePic); err != nil {
			return nil, fmt.Errorf("scanning friend: %w", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	return friends, nil
}

// StatusFor classifies other relative to viewer: friend, pending_sent,
// pending_received, or none.
func (s *FriendService) StatusFor(ctx context.Context, viewerID, otherID uuid.UUID) (models.FriendshipState, error) {
	var status models.FriendshipStatus
	var requesterID uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT status, user_id FROM friendships
		 WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)`,
		viewerID, otherID,
	).Scan(&status, &requesterID)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.FriendshipStateNone, nil
	}
	if err != nil {
		return models.FriendshipStateNone, fmt.Errorf("getting friendship status: %w", err)
	}

	if status == models.FriendshipStatusAccepted {
		return models.FriendshipStateFriend, nil
	}
	if requesterID == viewerID {
		return models.FriendshipStatePendingSent, nil
	}
	return models.FriendshipStatePendingReceived, nil
}

// Search returns up to SearchPageSize users whose username or full name
// contains the query, excluding the viewer, each annotated with the
// friendship classification. Callers enforce the minimum query length.
func (s *FriendService) Search(ctx context.Context, viewerID uuid.UUID, query string) ([]models.UserSearchResult, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.Query(ctx,
		`SELECT u.id, u.username, u.full_name, u.profile_pic,
			CASE
				WHEN f.status = 'accepted' THEN 'friend'
				WHEN f.status = 'pending' AND f.user_id = $1 THEN 'pending_sent'
				WHEN f.status = 'pending' AND f.friend_id = $1 THEN 'pending_received'
				ELSE 'none'
			END
		 FROM users u
		 LEFT JOIN friendships f ON (
			(f.user_id = $1 AND f.friend_id = u.id) OR
			(f.friend_id = $1 AND f.user_id = u.id)
		 )
		 WHERE u.id <> $1 AND (u.username ILIKE $2 OR u.full_name ILIKE $2)
		 ORDER BY u.username ASC
		 LIMIT $3`,
		viewerID, pattern, SearchPageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	defer rows.Close()

	results := []models.UserSearchResult{}
	for rows.Next() {
		var r models.UserSearchResult
		var state string
		if err := rows.Scan(&r.ID, &r.Username, &r.FullName, &r.ProfilePic, &state); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		r.FriendshipStatus = models.FriendshipState(state)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	return results, nil
}

type FriendServiceInterface interface {
	SendRequest(ctx context.Context, userID, friendID uuid.UUID) error
	AcceptRequest(ctx context.Context, userID, requestID uuid.UUID) error
	RejectRequest(ctx context.Context, userID, requestID uuid.UUID) error
	Unfriend(ctx context.Context, userID, friendID uuid.UUID) error
	Requests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error)
	Friends(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error)
	StatusFor(ctx context.Context, viewerID, otherID uuid.UUID) (models.FriendshipState, error)
	Search(ctx context.Context, viewerID uuid.UUID, query string) ([]models.UserSearchResult, error)
}
