package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

const sessionKeyPrefix = "session:"

// AuthService owns password hashing and the Redis-backed session store.
// Session tokens are opaque 256-bit values; the Redis value is the user ID.
type AuthService struct {
	redis RedisClient
	ttl   time.Duration
}

func NewAuthService(redis RedisClient, ttl time.Duration) *AuthService {
	return &AuthService{redis: redis, ttl: ttl}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash. A nil
// hash (provider-only account) never matches.
func (s *AuthService) VerifyPassword(hash *string, password string) bool {
	if hash == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password)) == nil
}

func (s *AuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := generateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	if err := s.redis.Set(ctx, sessionKeyPrefix+token, userID.String(), s.ttl); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}

	return token, nil
}

// ValidateSession resolves a token to its user ID and slides the TTL
// forward so active sessions do not expire mid-use.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (uuid.UUID, error) {
	value, err := s.redis.Get(ctx, sessionKeyPrefix+token)
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrSessionNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("looking up session: %w", err)
	}

	userID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, ErrSessionNotFound
	}

	_ = s.redis.Expire(ctx, sessionKeyPrefix+token, s.ttl)

	return userID, nil
}

func (s *AuthService) DeleteSession(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, sessionKeyPrefix+token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func generateSecureToken(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type AuthServiceInterface interface {
	HashPassword(password string) (string, error)
	VerifyPassword(hash *string, password string) bool
	CreateSession(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateSession(ctx context.Context, token string) (uuid.UUID, error)
	DeleteSession(ctx context.Context, token string) error
}
