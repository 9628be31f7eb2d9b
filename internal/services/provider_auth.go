package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/socialspace/socialspace/internal/models"
)

var (
	ErrInvalidProviderClaims   = errors.New("invalid provider claims")
	ErrProviderEmailUnverified = errors.New("provider email not verified")
	ErrProviderIdentityExists  = errors.New("provider identity already linked")
)

// ProviderAuthService resolves a verified identity from an external login
// provider to a local account, creating one when needed.
type ProviderAuthService struct {
	db DB
}

func NewProviderAuthService(db DB) *ProviderAuthService {
	return &ProviderAuthService{db: db}
}

// LinkOrCreateUser maps provider claims to a user in three steps: an
// already-linked identity wins, then a matching email gets the identity
// linked, and otherwise a fresh account is provisioned with a username
// derived from the email.
func (s *ProviderAuthService) LinkOrCreateUser(ctx context.Context, claims IdentityClaims) (*models.User, error) {
	provider := strings.TrimSpace(string(claims.Provider))
	subject := strings.TrimSpace(claims.Subject)
	if provider == "" || subject == "" {
		return nil, ErrInvalidProviderClaims
	}

	linked, err := s.getUserByProviderSubject(ctx, claims.Provider, subject)
	if err == nil {
		return linked, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	email := normalizeEmail(claims.Email)
	if email == "" || !claims.EmailVerified {
		return nil, ErrProviderEmailUnverified
	}

	existing, err := s.getUserByEmail(ctx, email)
	if err == nil {
		if err := s.linkIdentity(ctx, existing.ID, claims.Provider, subject, email); err != nil {
			if errors.Is(err, ErrProviderIdentityExists) {
				return s.getUserByProviderSubject(ctx, claims.Provider, subject)
			}
			return nil, err
		}
		return existing, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	return s.provisionUser(ctx, claims, email)
}

func (s *ProviderAuthService) provisionUser(ctx context.Context, claims IdentityClaims, email string) (*models.User, error) {
	fullName := strings.TrimSpace(claims.Name)
	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}
	if fullName == "" {
		fullName = local
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback is a no-op after commit

	username, err := s.availableUsername(ctx, tx, local)
	if err != nil {
		return nil, err
	}

	user := &models.User{}
	err = tx.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, full_name)
		 VALUES ($1, $2, NULL, $3)
		 RETURNING `+userColumns,
		username, email, fullName,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName,
		&user.Bio, &user.ProfilePic, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO provider_identities (user_id, provider, subject, email)
		 VALUES ($1, $2, $3, $4)`,
		user.ID, claims.Provider, claims.Subject, email,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrProviderIdentityExists
		}
		return nil, fmt.Errorf("linking provider identity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return user, nil
}

// availableUsername starts from the email local part and appends a numeric
// suffix until the name is free.
func (s *ProviderAuthService) availableUsername(ctx context.Context, db DBConn, base string) (string, error) {
	base = sanitizeUsername(base)
	if base == "" {
		base = "user"
	}

	candidate := base
	for i := 0; i < 50; i++ {
		if i > 0 {
			candidate = fmt.Sprintf("%s%d", base, i)
		}
		var exists bool
		err := db.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))",
			candidate,
		).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("checking username availability: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return uuid.New().String()[:13], nil
}

func sanitizeUsername(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *ProviderAuthService) linkIdentity(ctx context.Context, userID uuid.UUID, provider Provider, subject, email string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO provider_identities (user_id, provider, subject, email)
		 VALUES ($1, $2, $3, $4)`,
		userID, provider, subject, email,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrProviderIdentityExists
		}
		return fmt.Errorf("inserting provider identity: %w", err)
	}
	return nil
}

func (s *ProviderAuthService) getUserByProviderSubject(ctx context.Context, provider Provider, subject string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		`SELECT u.id, u.username, u.email, u.password_hash, u.full_name, u.bio, u.profile_pic, u.created_at, u.updated_at
		 FROM provider_identities pi
		 JOIN users u ON u.id = pi.user_id
		 WHERE pi.provider = $1 AND pi.subject = $2`,
		provider, subject,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName,
		&user.Bio, &user.ProfilePic, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by provider subject: %w", err)
	}
	return user, nil
}

func (s *ProviderAuthService) getUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE LOWER(email) = LOWER($1)",
		email,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName,
		&user.Bio, &user.ProfilePic, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

type ProviderAuthServiceInterface interface {
	LinkOrCreateUser(ctx context.Context, claims IdentityClaims) (*models.User, error)
}
