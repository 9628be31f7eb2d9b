package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/socialspace/socialspace/internal/models"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailAlreadyExists    = errors.New("email already exists")
	ErrUsernameAlreadyExists = errors.New("username already taken")
)

const userColumns = "id, username, email, password_hash, full_name, bio, profile_pic, created_at, updated_at"

type UserService struct {
	db      DBConn
	uploads *UploadStore
}

func NewUserService(db DBConn, uploads *UploadStore) *UserService {
	return &UserService{db: db, uploads: uploads}
}

func (s *UserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))", params.Email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking email existence: %w", err)
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	err = s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))", params.Username).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking username existence: %w", err)
	}
	if exists {
		return nil, ErrUsernameAlreadyExists
	}

	user := &models.User{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, full_name)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		params.Username, params.Email, params.PasswordHash, params.FullName,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName, &user.Bio, &user.ProfilePic, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1",
		id,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName, &user.Bio, &user.ProfilePic, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return user, nil
}

// GetByLogin looks a user up by username or email, the login form accepts
// either.
func (s *UserService) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)",
		login,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName, &user.Bio, &user.ProfilePic, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by login: %w", err)
	}
	return user, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE LOWER(username) = LOWER($1)",
		username,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName, &user.Bio, &user.ProfilePic, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return user, nil
}

// UpdateProfile changes the caller's full name and bio, and optionally the
// profile picture. When a new picture is set, the previous stored file is
// removed unless it is the default sentinel.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, fullName, bio string, profilePic *string) (*models.User, error) {
	var previousPic string
	err := s.db.QueryRow(ctx, "SELECT profile_pic FROM users WHERE id = $1", userID).Scan(&previousPic)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting current profile pic: %w", err)
	}

	user := &models.User{}
	if profilePic != nil {
		err = s.db.QueryRow(ctx,
			`UPDATE users SET full_name = $1, bio = $2, profile_pic = $3, updated_at = NOW()
			 WHERE id = $4 RETURNING `+userColumns,
			fullName, bio, *profilePic, userID,
		).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName, &user.Bio, &user.ProfilePic, &user.CreatedAt, &user.UpdatedAt)
	} else {
		err = s.db.QueryRow(ctx,
			`UPDATE users SET full_name = $1, bio = $2, updated_at = NOW()
			 WHERE id = $3 RETURNING `+userColumns,
			fullName, bio, userID,
		).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName, &user.Bio, &user.ProfilePic, &user.CreatedAt, &user.UpdatedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	if profilePic != nil && previousPic != models.DefaultProfilePic && s.uploads != nil {
		if err := s.uploads.Remove(UploadKindProfile, previousPic); err != nil {
			return nil, fmt.Errorf("removing previous profile pic: %w", err)
		}
	}

	return user, nil
}

// Stats returns the post count and accepted-friend count shown on a profile.
func (s *UserService) Stats(ctx context.Context, userID uuid.UUID) (posts int, friends int, err error) {
	err = s.db.QueryRow(ctx, "SELECT COUNT(*) FROM posts WHERE user_id = $1", userID).Scan(&posts)
	if err != nil {
		return 0, 0, fmt.Errorf("counting posts: %w", err)
	}
	err = s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM friendships WHERE (user_id = $1 OR friend_id = $1) AND status = 'accepted'",
		userID,
	).Scan(&friends)
	if err != nil {
		return 0, 0, fmt.Errorf("counting friends: %w", err)
	}
	return posts, friends, nil
}

type UserServiceInterface interface {
	Create(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, fullName, bio string, profilePic *string) (*models.User, error)
	Stats(ctx context.Context, userID uuid.UUID) (posts int, friends int, err error)
}
